// Package competency loads competency definitions: the questions, session
// shape and thresholds that parameterize a play session.
package competency

import (
	"time"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
	"github.com/p-n-ai/pai-arena/internal/session"
	"github.com/p-n-ai/pai-arena/internal/stresstest"
)

// Definition is a competency loaded from YAML.
type Definition struct {
	ID          string                  `yaml:"id" json:"id"`
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Version     int                     `yaml:"version,omitempty" json:"version,omitempty"`
	Questions   []answer.Question       `yaml:"questions" json:"questions"`
	Session     SessionDef              `yaml:"session" json:"session"`
	Thresholds  *proficiency.Thresholds `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	SelfTests   []SelfTest              `yaml:"self_tests,omitempty" json:"self_tests,omitempty"`
}

// SessionDef is the YAML form of session.Config.
type SessionDef struct {
	TickSeconds float64        `yaml:"tick_seconds,omitempty" json:"tick_seconds,omitempty"`
	Phases      []PhaseDef     `yaml:"phases" json:"phases"`
	EdgeCase    *EdgeCaseDef   `yaml:"edge_case,omitempty" json:"edge_case,omitempty"`
	Indicators  []IndicatorDef `yaml:"indicators,omitempty" json:"indicators,omitempty"`
}

// PhaseDef is one timed phase.
type PhaseDef struct {
	Name            string  `yaml:"name" json:"name"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
	Volatility      float64 `yaml:"volatility,omitempty" json:"volatility,omitempty"`
}

// EdgeCaseDef is the scripted disruption.
type EdgeCaseDef struct {
	AfterPhase   string             `yaml:"after_phase" json:"after_phase"`
	Prompt       string             `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Interstitial bool               `yaml:"interstitial,omitempty" json:"interstitial,omitempty"`
	ReturnToPlay bool               `yaml:"return_to_play,omitempty" json:"return_to_play,omitempty"`
	Responses    map[string]float64 `yaml:"responses" json:"responses"`
}

// IndicatorDef is a live indicator.
type IndicatorDef struct {
	Name    string  `yaml:"name" json:"name"`
	Initial float64 `yaml:"initial,omitempty" json:"initial,omitempty"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
}

// SelfTest is an answer script graded against the definition's own
// questions before the definition may be published.
type SelfTest struct {
	Label            string            `yaml:"label" json:"label"`
	Description      string            `yaml:"description,omitempty" json:"description,omitempty"`
	Answers          map[string]string `yaml:"answers" json:"answers"`
	ExpectedAccuracy float64           `yaml:"expected_accuracy" json:"expected_accuracy"`
	Negative         bool              `yaml:"negative,omitempty" json:"negative,omitempty"`
}

// SessionConfig converts the definition into the engine configuration.
func (d Definition) SessionConfig() session.Config {
	cfg := session.Config{
		CompetencyID: d.ID,
		Questions:    d.Questions,
		Thresholds:   proficiency.DefaultThresholds(),
		TickInterval: seconds(d.Session.TickSeconds),
	}
	if d.Thresholds != nil {
		cfg.Thresholds = d.Thresholds.WithDefaults()
	}
	for _, p := range d.Session.Phases {
		cfg.Phases = append(cfg.Phases, session.PhaseSpec{
			Name:       p.Name,
			Duration:   seconds(p.DurationSeconds),
			Volatility: p.Volatility,
		})
	}
	if ec := d.Session.EdgeCase; ec != nil {
		cfg.EdgeCase = &session.EdgeCaseSpec{
			AfterPhase:   ec.AfterPhase,
			Prompt:       ec.Prompt,
			Interstitial: ec.Interstitial,
			ReturnToPlay: ec.ReturnToPlay,
			Responses:    ec.Responses,
		}
	}
	for _, ind := range d.Session.Indicators {
		cfg.Indicators = append(cfg.Indicators, session.IndicatorSpec{
			Name:    ind.Name,
			Initial: ind.Initial,
			Min:     ind.Min,
			Max:     ind.Max,
		})
	}
	return cfg
}

// Scenarios returns the self-tests as harness scenarios over the
// definition's questions, labelled with the competency ID.
func (d Definition) Scenarios() []stresstest.Scenario {
	out := make([]stresstest.Scenario, 0, len(d.SelfTests))
	for _, st := range d.SelfTests {
		out = append(out, stresstest.Scenario{
			Label:            d.ID + ": " + st.Label,
			Description:      st.Description,
			Questions:        d.Questions,
			Answers:          st.Answers,
			ExpectedAccuracy: st.ExpectedAccuracy,
			Negative:         st.Negative,
		})
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
