// Package proficiency maps finished-session signals to a proficiency level.
package proficiency

import "math"

// Level is an ordinal proficiency tier.
type Level int

const (
	LevelNeedsWork  Level = 1
	LevelProficient Level = 2
	LevelMastery    Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelNeedsWork:
		return "needs_work"
	case LevelProficient:
		return "proficient"
	case LevelMastery:
		return "mastery"
	default:
		return "unknown"
	}
}

// Metrics are the finalized signals of one play session.
type Metrics struct {
	Accuracy       float64  `json:"accuracy"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	EdgeCaseScore  *float64 `json:"edge_case_score"` // nil when the edge case never fired
	SessionCount   int      `json:"session_count"`
	TimedOut       bool     `json:"timed_out"`
}

// Thresholds parameterize Classify. Zero fields mean "use the default".
type Thresholds struct {
	MasteryAccuracy       float64 `json:"mastery_accuracy" yaml:"mastery_accuracy"`
	MasteryEdgeCaseScore  float64 `json:"mastery_edge_case_score" yaml:"mastery_edge_case_score"`
	MasterySessions       int     `json:"mastery_sessions" yaml:"mastery_sessions"`
	TightTimeLimitSeconds float64 `json:"tight_time_limit_seconds" yaml:"tight_time_limit_seconds"`
	ProficientAccuracy    float64 `json:"proficient_accuracy" yaml:"proficient_accuracy"`
	TimeLimitSeconds      float64 `json:"time_limit_seconds" yaml:"time_limit_seconds"`
}

// DefaultThresholds returns the stock boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MasteryAccuracy:       0.95,
		MasteryEdgeCaseScore:  0.80,
		MasterySessions:       3,
		TightTimeLimitSeconds: 180,
		ProficientAccuracy:    0.90,
		TimeLimitSeconds:      300,
	}
}

// WithDefaults fills missing or invalid fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if !positive(t.MasteryAccuracy) {
		t.MasteryAccuracy = d.MasteryAccuracy
	}
	if !positive(t.MasteryEdgeCaseScore) {
		t.MasteryEdgeCaseScore = d.MasteryEdgeCaseScore
	}
	if t.MasterySessions <= 0 {
		t.MasterySessions = d.MasterySessions
	}
	if !positive(t.TightTimeLimitSeconds) {
		t.TightTimeLimitSeconds = d.TightTimeLimitSeconds
	}
	if !positive(t.ProficientAccuracy) {
		t.ProficientAccuracy = d.ProficientAccuracy
	}
	if !positive(t.TimeLimitSeconds) {
		t.TimeLimitSeconds = d.TimeLimitSeconds
	}
	return t
}

// Classify returns the level for m. Mastery is checked before Proficient so
// a session satisfying both is always Mastery; anything unqualified,
// incomplete or timed out falls to LevelNeedsWork.
func Classify(m Metrics, t Thresholds) Level {
	t = t.WithDefaults()

	if m.TimedOut || !valid(m) {
		return LevelNeedsWork
	}

	if isMastery(m, t) {
		return LevelMastery
	}
	if m.Accuracy >= t.ProficientAccuracy && m.ElapsedSeconds <= t.TimeLimitSeconds {
		return LevelProficient
	}
	return LevelNeedsWork
}

func isMastery(m Metrics, t Thresholds) bool {
	if m.EdgeCaseScore == nil || math.IsNaN(*m.EdgeCaseScore) {
		return false
	}
	return m.Accuracy >= t.MasteryAccuracy &&
		m.ElapsedSeconds <= t.TightTimeLimitSeconds &&
		*m.EdgeCaseScore >= t.MasteryEdgeCaseScore &&
		m.SessionCount >= t.MasterySessions
}

func valid(m Metrics) bool {
	if math.IsNaN(m.Accuracy) || math.IsNaN(m.ElapsedSeconds) {
		return false
	}
	return m.Accuracy >= 0 && m.Accuracy <= 1 && m.ElapsedSeconds >= 0
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
