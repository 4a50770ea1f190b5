package live_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/gate"
	"github.com/p-n-ai/pai-arena/internal/live"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
	"github.com/p-n-ai/pai-arena/internal/results"
	"github.com/p-n-ai/pai-arena/internal/session"
)

type catalog map[string]competency.Definition

func (c catalog) Get(id string) (competency.Definition, bool) {
	d, ok := c[id]
	return d, ok
}

type fixedGate struct{ allowed bool }

func (g fixedGate) Certify(_ context.Context, def competency.Definition) (gate.Certification, error) {
	return gate.Certification{CompetencyID: def.ID, Allowed: g.allowed}, nil
}

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), tick: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) session.Ticker { return fakeTicker{c.tick} }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.tick <- now
}

type fakeTicker struct{ ch chan time.Time }

func (f fakeTicker) C() <-chan time.Time { return f.ch }
func (f fakeTicker) Stop()               {}

func testDefinition() competency.Definition {
	return competency.Definition{
		ID:   "pricing-basics",
		Name: "Pricing Basics",
		Questions: []answer.Question{
			{ID: "q1", Text: "What drives top-line growth?", AcceptableAnswers: []string{"revenue; income"}},
			{ID: "q2", Text: "What does a loyal customer base reflect?", AcceptableAnswers: []string{"customer satisfaction"}},
		},
		Session: competency.SessionDef{
			Phases: []competency.PhaseDef{
				{Name: "warmup", DurationSeconds: 30, Volatility: 0.01},
				{Name: "pressure", DurationSeconds: 45, Volatility: 0.05},
			},
			EdgeCase: &competency.EdgeCaseDef{
				AfterPhase:   "warmup",
				Prompt:       "A competitor halves its prices.",
				Interstitial: true,
				ReturnToPlay: true,
				Responses:    map[string]float64{"discount": 0.9, "ignore": 0},
			},
			Indicators: []competency.IndicatorDef{{Name: "demand", Initial: 50, Min: 0, Max: 100}},
		},
	}
}

type fixture struct {
	server  *httptest.Server
	handler *live.Handler
	store   *results.MemoryStore
	events  *results.MemoryEventLogger
	clock   *fakeClock
}

func newFixture(t *testing.T, mutate func(*live.Config)) *fixture {
	t.Helper()
	f := &fixture{
		store:  results.NewMemoryStore(),
		events: results.NewMemoryEventLogger(),
		clock:  newFakeClock(),
	}
	cfg := live.Config{
		Catalog: catalog{"pricing-basics": testDefinition()},
		Store:   f.store,
		Events:  f.events,
		Clock:   f.clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.handler = live.NewHandler(cfg)

	mux := http.NewServeMux()
	mux.Handle("GET /v1/competencies/{id}/play", f.handler)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) url(competencyID, player string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/competencies/" + competencyID + "/play"
	if player != "" {
		u += "?player=" + player
	}
	return u
}

func (f *fixture) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, f.url("pricing-basics", player), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(live.Outbound) bool) live.Outbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var msg live.Outbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(live.Outbound) bool {
	return func(m live.Outbound) bool { return m.Type == typ }
}

func write(t *testing.T, conn *websocket.Conn, in live.Inbound) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func hasEvent(l *results.MemoryEventLogger, typ string) bool {
	for _, e := range l.Events() {
		if e.EventType == typ {
			return true
		}
	}
	return false
}

func TestHandler_FullSession(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "player-1")

	hello := readUntil(t, conn, ofType(live.TypeHello)).Hello
	if hello == nil || hello.SessionCount != 1 || len(hello.Questions) != 2 || hello.TotalSeconds != 75 {
		t.Fatalf("hello = %+v", hello)
	}
	readUntil(t, conn, func(m live.Outbound) bool {
		return m.Type == live.TypeState && m.State.Status == session.StatusActive
	})

	write(t, conn, live.Inbound{Type: live.TypeAnswer, QuestionID: "q1", Text: "Revenue"})
	fb := readUntil(t, conn, ofType(live.TypeFeedback)).Feedback
	if fb == nil || !fb.IsCorrect || fb.QuestionID != "q1" {
		t.Fatalf("feedback = %+v, want q1 correct", fb)
	}

	f.clock.Advance(31 * time.Second)
	ec := readUntil(t, conn, ofType(live.TypeEdgeCase)).EdgeCase
	if ec == nil || ec.Prompt != "A competitor halves its prices." || !ec.Interstitial {
		t.Fatalf("edge case = %+v", ec)
	}
	if strings.Join(ec.Actions, ",") != "discount,ignore" {
		t.Errorf("Actions = %v, want [discount ignore]", ec.Actions)
	}

	write(t, conn, live.Inbound{Type: live.TypeEdgeCase, Action: "discount"})
	readUntil(t, conn, func(m live.Outbound) bool {
		return m.Type == live.TypeState && m.State.Status == session.StatusActive && m.State.Phase == "pressure"
	})

	write(t, conn, live.Inbound{Type: live.TypeAnswer, QuestionID: "q2", Text: "customer satisfaction"})
	readUntil(t, conn, ofType(live.TypeFeedback))

	write(t, conn, live.Inbound{Type: live.TypeSubmit})
	res := readUntil(t, conn, ofType(live.TypeResult)).Result
	if res == nil {
		t.Fatal("result message without result")
	}
	if res.Level != proficiency.LevelProficient {
		t.Errorf("Level = %v, want proficient on a first session", res.Level)
	}
	if res.Metrics.Accuracy != 1 || res.Metrics.EdgeCaseScore == nil || *res.Metrics.EdgeCaseScore != 0.9 {
		t.Errorf("Metrics = %+v", res.Metrics)
	}

	n, err := f.store.CountCompleted(context.Background(), "player-1", "pricing-basics")
	if err != nil || n != 1 {
		t.Errorf("CountCompleted() = %d, %v; want 1", n, err)
	}
	waitFor(t, "finalized event", func() bool { return hasEvent(f.events, results.EventSessionFinalized) })
	for _, typ := range []string{results.EventSessionStarted, results.EventEdgeCaseTriggered} {
		if !hasEvent(f.events, typ) {
			t.Errorf("missing %s event", typ)
		}
	}

	// The next session for the same player counts the completed one.
	second := f.dial(t, "player-1")
	if h := readUntil(t, second, ofType(live.TypeHello)).Hello; h.SessionCount != 2 {
		t.Errorf("second SessionCount = %d, want 2", h.SessionCount)
	}
}

func TestHandler_DisconnectDiscards(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "player-1")

	readUntil(t, conn, ofType(live.TypeHello))
	write(t, conn, live.Inbound{Type: live.TypeAnswer, QuestionID: "q1", Text: "revenue"})
	readUntil(t, conn, ofType(live.TypeFeedback))
	if f.handler.Registry().Len() != 1 {
		t.Errorf("Registry().Len() = %d, want 1 while playing", f.handler.Registry().Len())
	}

	conn.CloseNow()

	waitFor(t, "session removal", func() bool { return f.handler.Registry().Len() == 0 })
	waitFor(t, "discard event", func() bool { return hasEvent(f.events, results.EventSessionDiscarded) })
	if n, _ := f.store.CountCompleted(context.Background(), "player-1", "pricing-basics"); n != 0 {
		t.Errorf("CountCompleted() = %d, want 0 for a discarded session", n)
	}
}

func TestHandler_ErrorsAreReported(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "player-1")
	readUntil(t, conn, ofType(live.TypeHello))

	write(t, conn, live.Inbound{Type: live.TypeAnswer, QuestionID: "q9", Text: "revenue"})
	if msg := readUntil(t, conn, ofType(live.TypeError)); !strings.Contains(msg.Error, "unknown question") {
		t.Errorf("error = %q, want unknown question", msg.Error)
	}

	write(t, conn, live.Inbound{Type: live.TypeResume})
	if msg := readUntil(t, conn, ofType(live.TypeError)); !strings.Contains(msg.Error, "cannot return to play") {
		t.Errorf("error = %q, want resume rejection", msg.Error)
	}

	write(t, conn, live.Inbound{Type: "dance"})
	if msg := readUntil(t, conn, ofType(live.TypeError)); !strings.Contains(msg.Error, "unknown message type") {
		t.Errorf("error = %q, want unknown message type", msg.Error)
	}
}

func TestHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*live.Config)
		competency string
		player     string
		wantStatus int
	}{
		{"missing player", nil, "pricing-basics", "", http.StatusBadRequest},
		{"unknown competency", nil, "nope", "p1", http.StatusNotFound},
		{"uncertified", func(c *live.Config) { c.Gate = fixedGate{allowed: false} }, "pricing-basics", "p1", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, resp, err := websocket.Dial(ctx, f.url(tt.competency, tt.player), nil)
			if err == nil {
				conn.CloseNow()
				t.Fatal("Dial() should fail")
			}
			if resp == nil || resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %v, want %d", resp, tt.wantStatus)
			}
		})
	}
}

func TestHandler_CertifiedPlays(t *testing.T) {
	f := newFixture(t, func(c *live.Config) { c.Gate = fixedGate{allowed: true} })
	conn := f.dial(t, "player-1")
	readUntil(t, conn, ofType(live.TypeHello))
}

func TestHandler_RegistryFull(t *testing.T) {
	f := newFixture(t, func(c *live.Config) { c.Registry = live.NewRegistry(1) })
	first := f.dial(t, "player-1")
	readUntil(t, first, ofType(live.TypeHello))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, f.url("pricing-basics", "player-2"), nil)
	if err == nil {
		conn.CloseNow()
		t.Fatal("Dial() should fail when the registry is full")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %v, want 503", resp)
	}
}
