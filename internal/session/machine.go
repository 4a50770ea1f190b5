package session

import (
	"errors"
	"maps"
	"time"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
)

var (
	ErrNotStarted      = errors.New("session not started")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrFinalized       = errors.New("session already finalized")
	ErrDiscarded       = errors.New("session discarded")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrNoEdgeCase      = errors.New("edge case has not been triggered")
	ErrEdgeCaseClosed  = errors.New("edge case already resolved")
	ErrCannotResume    = errors.New("session cannot return to play")
)

// Status is the coarse lifecycle position of a session.
type Status string

const (
	StatusIntro        Status = "intro"
	StatusActive       Status = "active"
	StatusInterstitial Status = "interstitial"
	StatusFinalized    Status = "finalized"
	StatusDiscarded    Status = "discarded"
)

// Rand supplies the noise for indicator random walks.
type Rand interface {
	Float64() float64
}

// EdgeCaseEvent records the single disruption of a session.
type EdgeCaseEvent struct {
	Triggered   bool          `json:"triggered"`
	TriggeredAt time.Duration `json:"triggered_at"`
	RecoveredBy string        `json:"recovered_by,omitempty"`
	Responded   bool          `json:"responded"`
	Score       float64       `json:"score"`
}

// Indicator is the current value of a live indicator.
type Indicator struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Result is the terminal artifact of a finalized session.
type Result struct {
	SessionID    string                  `json:"session_id"`
	PlayerID     string                  `json:"player_id"`
	CompetencyID string                  `json:"competency_id"`
	Metrics      proficiency.Metrics     `json:"metrics"`
	Level        proficiency.Level       `json:"level"`
	Questions    []answer.QuestionResult `json:"questions"`
	EdgeCase     *EdgeCaseEvent          `json:"edge_case,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// State is a snapshot of a session. Apply never mutates its input.
type State struct {
	SessionID      string                           `json:"session_id"`
	PlayerID       string                           `json:"player_id"`
	SessionCount   int                              `json:"session_count"`
	Status         Status                           `json:"status"`
	Phase          string                           `json:"phase"`
	PhaseIndex     int                              `json:"phase_index"`
	Elapsed        time.Duration                    `json:"elapsed"`
	Remaining      time.Duration                    `json:"remaining"`
	Indicators     []Indicator                      `json:"indicators"`
	EdgeCase       *EdgeCaseEvent                   `json:"edge_case,omitempty"`
	ReturnedToPlay bool                             `json:"returned_to_play"`
	Answers        map[string]answer.QuestionResult `json:"answers"`
	Result         *Result                          `json:"result,omitempty"`
}

// NewState returns a session waiting in the intro.
func NewState(sessionID, playerID string, sessionCount int) State {
	return State{
		SessionID:    sessionID,
		PlayerID:     playerID,
		SessionCount: sessionCount,
		Status:       StatusIntro,
		Phase:        PhaseIntro,
		Answers:      map[string]answer.QuestionResult{},
	}
}

// Terminal reports whether no further events will be accepted.
func (s State) Terminal() bool {
	return s.Status == StatusFinalized || s.Status == StatusDiscarded
}

func (s State) clone() State {
	c := s
	c.Indicators = append([]Indicator(nil), s.Indicators...)
	c.Answers = maps.Clone(s.Answers)
	if c.Answers == nil {
		c.Answers = map[string]answer.QuestionResult{}
	}
	if s.EdgeCase != nil {
		ec := *s.EdgeCase
		c.EdgeCase = &ec
	}
	return c
}

// Event is an input to Apply.
type Event interface {
	event()
}

type (
	// Start leaves the intro and begins the first phase.
	Start struct{}
	// Tick reports the session clock.
	Tick struct{ Elapsed time.Duration }
	// Answer is one player answer for a question.
	Answer struct {
		QuestionID string
		Text       string
	}
	// EdgeCaseResponse is the player's reaction to the edge case.
	EdgeCaseResponse struct{ Action string }
	// Resume returns from the edge-case interstitial to play.
	Resume struct{}
	// Submit ends the session early at the given elapsed time.
	Submit struct{ Elapsed time.Duration }
	// Cancel discards the session without classification.
	Cancel struct{}
)

func (Start) event()            {}
func (Tick) event()             {}
func (Answer) event()           {}
func (EdgeCaseResponse) event() {}
func (Resume) event()           {}
func (Submit) event()           {}
func (Cancel) event()           {}

// Apply returns the state that follows st after ev. rng drives indicator
// noise and may be nil to hold indicators still.
func Apply(cfg Config, st State, ev Event, rng Rand) (State, error) {
	switch st.Status {
	case StatusFinalized:
		return st, ErrFinalized
	case StatusDiscarded:
		return st, ErrDiscarded
	}

	next := st.clone()

	if _, ok := ev.(Cancel); ok {
		next.Status = StatusDiscarded
		return next, nil
	}

	if st.Status == StatusIntro {
		if _, ok := ev.(Start); !ok {
			return st, ErrNotStarted
		}
		if len(cfg.Phases) == 0 {
			return st, errors.New("no phases configured")
		}
		next.Status = StatusActive
		next.PhaseIndex = 0
		next.Phase = cfg.Phases[0].Name
		next.Remaining = cfg.TotalDuration()
		next.Indicators = make([]Indicator, 0, len(cfg.Indicators))
		for _, ind := range cfg.Indicators {
			next.Indicators = append(next.Indicators, Indicator{
				Name:  ind.Name,
				Value: clamp(ind.Initial, ind.Min, ind.Max),
			})
		}
		return next, nil
	}

	switch e := ev.(type) {
	case Start:
		return st, ErrAlreadyStarted

	case Tick:
		total := cfg.TotalDuration()
		elapsed := clampDuration(e.Elapsed, total)
		advanceClock(cfg, &next, elapsed)
		walkIndicators(cfg, &next, rng)
		maybeTriggerEdgeCase(cfg, &next)
		if elapsed >= total {
			finalize(cfg, &next, true)
		}
		return next, nil

	case Answer:
		q, ok := cfg.question(e.QuestionID)
		if !ok {
			return st, ErrUnknownQuestion
		}
		next.Answers[q.ID] = answer.ValidateQuestion(q, e.Text)
		return next, nil

	case EdgeCaseResponse:
		if next.EdgeCase == nil {
			return st, ErrNoEdgeCase
		}
		if next.EdgeCase.Responded {
			return st, ErrEdgeCaseClosed
		}
		next.EdgeCase.Responded = true
		next.EdgeCase.RecoveredBy = e.Action
		next.EdgeCase.Score = clamp(cfg.EdgeCase.Responses[e.Action], 0, 1)
		if next.Status == StatusInterstitial && cfg.EdgeCase.ReturnToPlay && !next.ReturnedToPlay {
			returnToPlay(cfg, &next)
		}
		return next, nil

	case Resume:
		if next.Status != StatusInterstitial || cfg.EdgeCase == nil || !cfg.EdgeCase.ReturnToPlay || next.ReturnedToPlay {
			return st, ErrCannotResume
		}
		returnToPlay(cfg, &next)
		return next, nil

	case Submit:
		total := cfg.TotalDuration()
		elapsed := clampDuration(e.Elapsed, total)
		advanceClock(cfg, &next, elapsed)
		finalize(cfg, &next, elapsed >= total)
		return next, nil
	}

	return st, nil
}

func advanceClock(cfg Config, st *State, elapsed time.Duration) {
	st.Elapsed = elapsed
	st.Remaining = cfg.TotalDuration() - elapsed

	// Phases only move forward, even if the clock is corrected backwards.
	if idx := cfg.phaseAt(elapsed); idx > st.PhaseIndex {
		st.PhaseIndex = idx
		if st.Status == StatusActive {
			st.Phase = cfg.Phases[idx].Name
		}
	}
}

// maybeTriggerEdgeCase creates the edge case the first time the boundary is
// crossed. The existing event, not the clock, guards against a second one.
func maybeTriggerEdgeCase(cfg Config, st *State) {
	if st.EdgeCase != nil {
		return
	}
	boundary, ok := cfg.EdgeCaseBoundary()
	if !ok || st.Elapsed < boundary {
		return
	}
	st.EdgeCase = &EdgeCaseEvent{Triggered: true, TriggeredAt: st.Elapsed}
	if cfg.EdgeCase.Interstitial {
		st.Status = StatusInterstitial
		st.Phase = PhaseEdgeCase
	}
}

func returnToPlay(cfg Config, st *State) {
	st.Status = StatusActive
	st.Phase = cfg.Phases[st.PhaseIndex].Name
	st.ReturnedToPlay = true
}

func walkIndicators(cfg Config, st *State, rng Rand) {
	if rng == nil || len(st.Indicators) != len(cfg.Indicators) {
		return
	}
	vol := cfg.Phases[st.PhaseIndex].Volatility
	for i, ind := range cfg.Indicators {
		step := (rng.Float64()*2 - 1) * vol * (ind.Max - ind.Min)
		st.Indicators[i].Value = clamp(st.Indicators[i].Value+step, ind.Min, ind.Max)
	}
}

// finalize freezes the metrics and classifies the session.
func finalize(cfg Config, st *State, timedOut bool) {
	answers := make(map[string]string, len(st.Answers))
	for id, r := range st.Answers {
		answers[id] = r.UserAnswer
	}
	questions, accuracy := answer.ValidateSession(cfg.Questions, answers)

	var edge *EdgeCaseEvent
	var edgeScore *float64
	if st.EdgeCase != nil {
		ec := *st.EdgeCase
		edge = &ec
		score := ec.Score
		edgeScore = &score
	}

	metrics := proficiency.Metrics{
		Accuracy:       accuracy,
		ElapsedSeconds: st.Elapsed.Seconds(),
		EdgeCaseScore:  edgeScore,
		SessionCount:   st.SessionCount,
		TimedOut:       timedOut,
	}

	st.Status = StatusFinalized
	st.Phase = PhaseResults
	st.Result = &Result{
		SessionID:    st.SessionID,
		PlayerID:     st.PlayerID,
		CompetencyID: cfg.CompetencyID,
		Metrics:      metrics,
		Level:        proficiency.Classify(metrics, cfg.Thresholds),
		Questions:    questions,
		EdgeCase:     edge,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(d, total time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > total {
		return total
	}
	return d
}
