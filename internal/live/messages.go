// Package live streams a play session over a WebSocket: the client sends
// answers and edge-case reactions, the server pushes feedback, clock
// snapshots and the final result.
package live

import (
	"sort"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/session"
)

// Inbound message types.
const (
	TypeAnswer   = "answer"
	TypeEdgeCase = "edge_case"
	TypeResume   = "resume"
	TypeSubmit   = "submit"
)

// Outbound message types. TypeEdgeCase is shared with inbound.
const (
	TypeHello    = "hello"
	TypeState    = "state"
	TypeFeedback = "feedback"
	TypeResult   = "result"
	TypeError    = "error"
)

// Inbound is a client message.
type Inbound struct {
	Type       string `json:"type"`
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Action     string `json:"action,omitempty"`
}

// Outbound is a server message. Exactly one payload field is set per type.
type Outbound struct {
	Type     string                 `json:"type"`
	Hello    *Hello                 `json:"hello,omitempty"`
	State    *StateView             `json:"state,omitempty"`
	Feedback *answer.QuestionResult `json:"feedback,omitempty"`
	EdgeCase *EdgeCaseView          `json:"edge_case,omitempty"`
	Result   *session.Result        `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Hello introduces the session. Acceptable answers are never sent.
type Hello struct {
	SessionID    string          `json:"session_id"`
	CompetencyID string          `json:"competency_id"`
	Name         string          `json:"name"`
	SessionCount int             `json:"session_count"`
	TotalSeconds float64         `json:"total_seconds"`
	Phases       []PhaseView     `json:"phases"`
	Questions    []QuestionView  `json:"questions"`
	Indicators   []IndicatorView `json:"indicators,omitempty"`
}

// PhaseView describes one phase.
type PhaseView struct {
	Name            string  `json:"name"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// QuestionView is a question without its answers.
type QuestionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// IndicatorView is an indicator's range.
type IndicatorView struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// StateView is a clock snapshot.
type StateView struct {
	Status           session.Status      `json:"status"`
	Phase            string              `json:"phase"`
	ElapsedSeconds   float64             `json:"elapsed_seconds"`
	RemainingSeconds float64             `json:"remaining_seconds"`
	Indicators       []session.Indicator `json:"indicators"`
	Answered         int                 `json:"answered"`
	EdgeCase         bool                `json:"edge_case"`
	CanResume        bool                `json:"can_resume"`
}

// EdgeCaseView announces the disruption.
type EdgeCaseView struct {
	Prompt             string   `json:"prompt"`
	Actions            []string `json:"actions"`
	Interstitial       bool     `json:"interstitial"`
	TriggeredAtSeconds float64  `json:"triggered_at_seconds"`
}

func newHello(def competency.Definition, cfg session.Config, sessionID string, sessionCount int) *Hello {
	h := &Hello{
		SessionID:    sessionID,
		CompetencyID: def.ID,
		Name:         def.Name,
		SessionCount: sessionCount,
		TotalSeconds: cfg.TotalDuration().Seconds(),
	}
	for _, p := range cfg.Phases {
		h.Phases = append(h.Phases, PhaseView{Name: p.Name, DurationSeconds: p.Duration.Seconds()})
	}
	for _, q := range cfg.Questions {
		h.Questions = append(h.Questions, QuestionView{ID: q.ID, Text: q.Text})
	}
	for _, ind := range cfg.Indicators {
		h.Indicators = append(h.Indicators, IndicatorView{Name: ind.Name, Min: ind.Min, Max: ind.Max})
	}
	return h
}

func newStateView(cfg session.Config, st session.State) *StateView {
	return &StateView{
		Status:           st.Status,
		Phase:            st.Phase,
		ElapsedSeconds:   st.Elapsed.Seconds(),
		RemainingSeconds: st.Remaining.Seconds(),
		Indicators:       st.Indicators,
		Answered:         len(st.Answers),
		EdgeCase:         st.EdgeCase != nil,
		CanResume: st.Status == session.StatusInterstitial &&
			cfg.EdgeCase != nil && cfg.EdgeCase.ReturnToPlay && !st.ReturnedToPlay,
	}
}

func newEdgeCaseView(cfg session.Config, ev session.EdgeCaseEvent) *EdgeCaseView {
	v := &EdgeCaseView{TriggeredAtSeconds: ev.TriggeredAt.Seconds()}
	if cfg.EdgeCase == nil {
		return v
	}
	v.Prompt = cfg.EdgeCase.Prompt
	v.Interstitial = cfg.EdgeCase.Interstitial
	for action := range cfg.EdgeCase.Responses {
		v.Actions = append(v.Actions, action)
	}
	sort.Strings(v.Actions)
	return v
}
