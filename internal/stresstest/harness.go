// Package stresstest replays fixed answer scenarios through the validator and
// reports, per scenario, whether the measured accuracy equals the expected
// one. Negative scenarios must stay at 0%; a harness that lets one match is
// itself broken.
package stresstest

import (
	"errors"
	"fmt"
	"math"

	"github.com/p-n-ai/pai-arena/internal/answer"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Scenario is one battery entry. Answers is keyed by question ID; a missing
// entry is graded as an empty answer.
type Scenario struct {
	Label            string            `json:"label" yaml:"label"`
	Description      string            `json:"description,omitempty" yaml:"description"`
	Questions        []answer.Question `json:"questions" yaml:"questions"`
	Answers          map[string]string `json:"answers" yaml:"answers"`
	ExpectedAccuracy float64           `json:"expected_accuracy" yaml:"expected_accuracy"`
	// Negative marks scenarios that exist to prove wrong input is rejected.
	Negative bool `json:"negative,omitempty" yaml:"negative"`
}

// Validate rejects scenarios that cannot be graded.
func (s Scenario) Validate() error {
	if s.Label == "" {
		return errors.New("label is required")
	}
	if len(s.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	if math.IsNaN(s.ExpectedAccuracy) || s.ExpectedAccuracy < 0 || s.ExpectedAccuracy > 1 {
		return fmt.Errorf("expected accuracy %v outside [0, 1]", s.ExpectedAccuracy)
	}
	if s.Negative && s.ExpectedAccuracy != 0 {
		return errors.New("negative scenario must expect 0% accuracy")
	}
	ids := make(map[string]bool, len(s.Questions))
	for _, q := range s.Questions {
		if q.ID == "" {
			return errors.New("question id is required")
		}
		if ids[q.ID] {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		ids[q.ID] = true
	}
	return nil
}

// ScenarioResult is the graded outcome of one scenario. Percentages are
// rounded integers and pass/fail compares them exactly.
type ScenarioResult struct {
	Label           string                  `json:"label"`
	Negative        bool                    `json:"negative,omitempty"`
	ExpectedPercent int                     `json:"expected_percent"`
	ActualPercent   int                     `json:"actual_percent"`
	Delta           int                     `json:"delta"`
	Passed          bool                    `json:"passed"`
	Error           string                  `json:"error,omitempty"`
	Questions       []answer.QuestionResult `json:"questions,omitempty"`
}

// Report is the outcome of a full run.
type Report struct {
	OverallStatus Status           `json:"overall_status"`
	Scenarios     []ScenarioResult `json:"scenarios"`
}

// Passed reports whether every scenario passed.
func (r Report) Passed() bool {
	return r.OverallStatus == StatusPassed
}

// Failures returns the scenarios that diverged.
func (r Report) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Passed {
			out = append(out, s)
		}
	}
	return out
}

// Run grades every scenario. It never stops at the first failure, and an
// empty battery fails.
func Run(scenarios []Scenario) Report {
	report := Report{
		OverallStatus: StatusPassed,
		Scenarios:     make([]ScenarioResult, 0, len(scenarios)),
	}
	if len(scenarios) == 0 {
		report.OverallStatus = StatusFailed
		return report
	}

	seen := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		res := runScenario(s)
		if res.Passed && seen[s.Label] {
			res.Passed = false
			res.Error = "duplicate scenario label"
		}
		seen[s.Label] = true
		if !res.Passed {
			report.OverallStatus = StatusFailed
		}
		report.Scenarios = append(report.Scenarios, res)
	}
	return report
}

func runScenario(s Scenario) ScenarioResult {
	res := ScenarioResult{
		Label:           s.Label,
		Negative:        s.Negative,
		ExpectedPercent: answer.Percent(s.ExpectedAccuracy),
	}
	if err := s.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	questions, accuracy := answer.ValidateSession(s.Questions, s.Answers)
	res.Questions = questions
	res.ActualPercent = answer.Percent(accuracy)
	res.Delta = res.ActualPercent - res.ExpectedPercent
	res.Passed = res.Delta == 0
	if !res.Passed && s.Negative {
		res.Error = "negative scenario matched"
	}
	return res
}
