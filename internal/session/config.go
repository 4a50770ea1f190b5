// Package session sequences a play session through timed phases, injects a
// single scripted edge case, and finalizes the session into a proficiency
// verdict.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
)

// Reserved phase names.
const (
	PhaseIntro    = "intro"
	PhaseEdgeCase = "edge_case"
	PhaseResults  = "results"
)

const defaultTickInterval = time.Second

// PhaseSpec declares one ordinary phase of a session.
type PhaseSpec struct {
	Name       string
	Duration   time.Duration
	Volatility float64 // fraction of an indicator's range it may move per tick
}

// EdgeCaseSpec configures the scripted disruption.
type EdgeCaseSpec struct {
	// AfterPhase names the phase whose end is the trigger boundary.
	AfterPhase string
	Prompt     string
	// Interstitial moves the session into the edge_case phase when triggered.
	Interstitial bool
	// ReturnToPlay allows a single return from the interstitial to play.
	ReturnToPlay bool
	// Responses scores each recognised player action in [0, 1].
	Responses map[string]float64
}

// IndicatorSpec declares a live numeric indicator shown to the player.
type IndicatorSpec struct {
	Name    string
	Initial float64
	Min     float64
	Max     float64
}

// Config is the per-competency session configuration. The engine treats
// every value as an opaque parameter.
type Config struct {
	CompetencyID string
	Phases       []PhaseSpec
	EdgeCase     *EdgeCaseSpec
	Indicators   []IndicatorSpec
	Questions    []answer.Question
	Thresholds   proficiency.Thresholds
	TickInterval time.Duration
}

// Validate checks that the configuration describes a playable session.
func (c Config) Validate() error {
	if len(c.Phases) == 0 {
		return errors.New("at least one phase is required")
	}
	seen := make(map[string]bool, len(c.Phases))
	for i, p := range c.Phases {
		switch {
		case p.Name == "":
			return fmt.Errorf("phase %d: name is required", i)
		case p.Name == PhaseIntro || p.Name == PhaseEdgeCase || p.Name == PhaseResults:
			return fmt.Errorf("phase %d: name %q is reserved", i, p.Name)
		case seen[p.Name]:
			return fmt.Errorf("phase %d: duplicate name %q", i, p.Name)
		case p.Duration <= 0:
			return fmt.Errorf("phase %q: duration must be positive", p.Name)
		case p.Volatility < 0 || p.Volatility > 1:
			return fmt.Errorf("phase %q: volatility must be within [0, 1]", p.Name)
		}
		seen[p.Name] = true
	}

	if c.EdgeCase != nil {
		idx := c.phaseIndex(c.EdgeCase.AfterPhase)
		if idx < 0 {
			return fmt.Errorf("edge case: unknown phase %q", c.EdgeCase.AfterPhase)
		}
		if idx == len(c.Phases)-1 {
			return fmt.Errorf("edge case: phase %q is the last phase", c.EdgeCase.AfterPhase)
		}
	}

	for _, ind := range c.Indicators {
		if ind.Name == "" {
			return errors.New("indicator name is required")
		}
		if ind.Min >= ind.Max {
			return fmt.Errorf("indicator %q: min must be below max", ind.Name)
		}
	}

	ids := make(map[string]bool, len(c.Questions))
	for i, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d: id is required", i)
		}
		if ids[q.ID] {
			return fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		ids[q.ID] = true
	}

	if c.TickInterval < 0 {
		return errors.New("tick interval must not be negative")
	}
	return nil
}

// TotalDuration is the sum of all phase durations.
func (c Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, p := range c.Phases {
		total += p.Duration
	}
	return total
}

// EdgeCaseBoundary returns the elapsed time at which the edge case fires.
func (c Config) EdgeCaseBoundary() (time.Duration, bool) {
	if c.EdgeCase == nil {
		return 0, false
	}
	idx := c.phaseIndex(c.EdgeCase.AfterPhase)
	if idx < 0 {
		return 0, false
	}
	var boundary time.Duration
	for _, p := range c.Phases[:idx+1] {
		boundary += p.Duration
	}
	return boundary, true
}

func (c Config) tickInterval() time.Duration {
	if c.TickInterval <= 0 {
		return defaultTickInterval
	}
	return c.TickInterval
}

func (c Config) phaseIndex(name string) int {
	for i, p := range c.Phases {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// phaseAt returns the index of the phase active at elapsed.
func (c Config) phaseAt(elapsed time.Duration) int {
	var end time.Duration
	for i, p := range c.Phases {
		end += p.Duration
		if elapsed < end {
			return i
		}
	}
	return len(c.Phases) - 1
}

func (c Config) question(id string) (answer.Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return answer.Question{}, false
}
