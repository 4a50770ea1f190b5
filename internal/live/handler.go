package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/gate"
	"github.com/p-n-ai/pai-arena/internal/results"
	"github.com/p-n-ai/pai-arena/internal/session"
)

const (
	outboundBuffer      = 64
	readLimit           = 16 << 10
	defaultWriteTimeout = 5 * time.Second
)

// Catalog looks up competency definitions.
type Catalog interface {
	Get(id string) (competency.Definition, bool)
}

// Certifier decides whether a definition may be played.
type Certifier interface {
	Certify(ctx context.Context, def competency.Definition) (gate.Certification, error)
}

// Config holds dependencies for a Handler.
type Config struct {
	Catalog  Catalog
	Store    results.Store
	Events   results.EventLogger // NopEventLogger when nil
	Registry *Registry           // unbounded when nil
	// Gate, when set, refuses uncertified definitions.
	Gate         Certifier
	WriteTimeout time.Duration
	Clock        session.Clock // SystemClock when nil
	Accept       *websocket.AcceptOptions
}

// Handler serves GET /v1/competencies/{id}/play?player=... as a WebSocket.
type Handler struct {
	cfg Config
}

// NewHandler creates a live session handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Events == nil {
		cfg.Events = results.NopEventLogger{}
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry(0)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Handler{cfg: cfg}
}

// Registry returns the running-session registry.
func (h *Handler) Registry() *Registry {
	return h.cfg.Registry
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	competencyID := r.PathValue("id")
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}

	def, ok := h.cfg.Catalog.Get(competencyID)
	if !ok {
		http.Error(w, "competency not found", http.StatusNotFound)
		return
	}

	if h.cfg.Gate != nil {
		cert, err := h.cfg.Gate.Certify(r.Context(), def)
		if err != nil {
			slog.Error("certification failed", "competency_id", def.ID, "error", err)
			http.Error(w, "certification unavailable", http.StatusServiceUnavailable)
			return
		}
		if !cert.Allowed {
			http.Error(w, "competency is not certified for play", http.StatusConflict)
			return
		}
	}

	completed := 0
	if h.cfg.Store != nil {
		n, err := h.cfg.Store.CountCompleted(r.Context(), playerID, def.ID)
		if err != nil {
			slog.Error("failed to count completed sessions", "player_id", playerID, "competency_id", def.ID, "error", err)
			http.Error(w, "result store unavailable", http.StatusServiceUnavailable)
			return
		}
		completed = n
	}
	sessionCount := completed + 1

	sessionID := uuid.NewString()
	cfg := def.SessionConfig()
	conn := &connection{
		out:     make(chan Outbound, outboundBuffer),
		urgent:  make(chan Outbound, 1),
		stop:    make(chan struct{}),
		written: make(chan struct{}),
	}
	telemetry := results.NewTelemetry(h.cfg.Events, sessionID, playerID, def.ID)

	var sink session.Sink
	if h.cfg.Store != nil {
		sink = h.cfg.Store
	}
	runner, err := session.NewRunner(session.RunnerConfig{
		Config:       cfg,
		SessionID:    sessionID,
		PlayerID:     playerID,
		SessionCount: sessionCount,
		Clock:        h.cfg.Clock,
		Sink:         sink,
		Hooks: session.ChainHooks(telemetry.Hooks(), session.Hooks{
			OnState: func(st session.State) {
				conn.offer(Outbound{Type: TypeState, State: newStateView(cfg, st)})
			},
			OnEdgeCase: func(ev session.EdgeCaseEvent) {
				conn.sendUrgent(Outbound{Type: TypeEdgeCase, EdgeCase: newEdgeCaseView(cfg, ev)})
			},
		}),
	})
	if err != nil {
		slog.Error("invalid session config", "competency_id", def.ID, "error", err)
		http.Error(w, "competency cannot be played", http.StatusInternalServerError)
		return
	}

	if !h.cfg.Registry.Add(runner) {
		http.Error(w, "too many live sessions", http.StatusServiceUnavailable)
		return
	}
	defer h.cfg.Registry.Remove(sessionID)

	ws, err := websocket.Accept(w, r, h.cfg.Accept)
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	ws.SetReadLimit(readLimit)
	conn.ws = ws

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn.ctx = ctx
	conn.cancel = cancel

	go conn.writeLoop(h.cfg.WriteTimeout)
	conn.send(Outbound{Type: TypeHello, Hello: newHello(def, cfg, sessionID, sessionCount)})
	telemetry.Started(sessionCount)
	go h.readLoop(conn, runner)

	result, err := runner.Run(ctx)
	if err != nil {
		// The client went away or the server is shutting down; the session
		// is discarded without a result.
		ws.CloseNow()
		telemetry.Wait()
		return
	}

	conn.send(Outbound{Type: TypeResult, Result: result})
	close(conn.stop)
	<-conn.written
	ws.Close(websocket.StatusNormalClosure, "session finalized")
	cancel()
	telemetry.Wait()
}

func (h *Handler) readLoop(c *connection, runner *session.Runner) {
	defer c.cancel()
	for {
		var in Inbound
		if err := wsjson.Read(c.ctx, c.ws, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("live read ended", "session_id", runner.ID(), "error", err)
			}
			return
		}
		if !h.dispatch(c, runner, in) {
			return
		}
	}
}

// dispatch applies one client message. It reports false once the runner has
// stopped accepting actions.
func (h *Handler) dispatch(c *connection, runner *session.Runner, in Inbound) bool {
	var err error
	switch in.Type {
	case TypeAnswer:
		var qr answer.QuestionResult
		qr, err = runner.Answer(c.ctx, in.QuestionID, in.Text)
		if err == nil {
			c.send(Outbound{Type: TypeFeedback, Feedback: &qr})
		}
	case TypeEdgeCase:
		_, err = runner.RespondEdgeCase(c.ctx, in.Action)
	case TypeResume:
		_, err = runner.Resume(c.ctx)
	case TypeSubmit:
		_, err = runner.Submit(c.ctx)
	default:
		c.send(Outbound{Type: TypeError, Error: "unknown message type " + in.Type})
		return true
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
		return false
	default:
		c.send(Outbound{Type: TypeError, Error: err.Error()})
		return true
	}
}

// connection owns the outbound side of one WebSocket.
type connection struct {
	ws      *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	out     chan Outbound
	urgent  chan Outbound // overflow for messages queued from runner hooks
	stop    chan struct{}
	written chan struct{}
}

// send queues a message, waiting for room.
func (c *connection) send(msg Outbound) {
	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	}
}

// sendUrgent queues a message without waiting, falling back to the
// overflow slot when the buffer is full. Runner hooks must not block, and a
// session raises at most one edge case.
func (c *connection) sendUrgent(msg Outbound) {
	select {
	case c.out <- msg:
		return
	default:
	}
	select {
	case c.urgent <- msg:
	default:
		slog.Warn("dropping outbound message", "type", msg.Type)
	}
}

// offer queues a message if there is room and drops it otherwise. Only
// clock snapshots are offered.
func (c *connection) offer(msg Outbound) {
	select {
	case c.out <- msg:
	default:
	}
}

func (c *connection) writeLoop(timeout time.Duration) {
	defer close(c.written)
	for {
		select {
		case msg := <-c.out:
			if !c.write(msg, timeout) {
				return
			}
		case msg := <-c.urgent:
			if !c.write(msg, timeout) {
				return
			}
		case <-c.stop:
			for {
				select {
				case msg := <-c.urgent:
					if !c.write(msg, timeout) {
						return
					}
				case msg := <-c.out:
					if !c.write(msg, timeout) {
						return
					}
				default:
					return
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *connection) write(msg Outbound, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		c.cancel()
		return false
	}
	return true
}
