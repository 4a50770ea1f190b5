package proficiency

import (
	"math"
	"testing"
)

func score(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
		want Level
	}{
		{
			name: "mastery",
			m:    Metrics{Accuracy: 0.96, ElapsedSeconds: 120, EdgeCaseScore: score(0.85), SessionCount: 3},
			want: LevelMastery,
		},
		{
			name: "mastery needs third session",
			m:    Metrics{Accuracy: 0.96, ElapsedSeconds: 120, EdgeCaseScore: score(0.85), SessionCount: 2},
			want: LevelProficient,
		},
		{
			name: "mastery needs edge case",
			m:    Metrics{Accuracy: 1, ElapsedSeconds: 60, SessionCount: 5},
			want: LevelProficient,
		},
		{
			name: "weak edge case recovery",
			m:    Metrics{Accuracy: 1, ElapsedSeconds: 60, EdgeCaseScore: score(0.79), SessionCount: 5},
			want: LevelProficient,
		},
		{
			name: "too slow for mastery",
			m:    Metrics{Accuracy: 1, ElapsedSeconds: 181, EdgeCaseScore: score(1), SessionCount: 5},
			want: LevelProficient,
		},
		{
			name: "proficient boundary",
			m:    Metrics{Accuracy: 0.90, ElapsedSeconds: 300, SessionCount: 1},
			want: LevelProficient,
		},
		{
			name: "over time limit",
			m:    Metrics{Accuracy: 0.95, ElapsedSeconds: 301, SessionCount: 1},
			want: LevelNeedsWork,
		},
		{
			name: "low accuracy",
			m:    Metrics{Accuracy: 0.84, ElapsedSeconds: 10, EdgeCaseScore: score(1), SessionCount: 10},
			want: LevelNeedsWork,
		},
		{
			name: "timed out",
			m:    Metrics{Accuracy: 1, ElapsedSeconds: 100, EdgeCaseScore: score(1), SessionCount: 10, TimedOut: true},
			want: LevelNeedsWork,
		},
		{
			name: "zero accuracy",
			m:    Metrics{Accuracy: 0, ElapsedSeconds: 10},
			want: LevelNeedsWork,
		},
		{
			name: "nan accuracy",
			m:    Metrics{Accuracy: math.NaN(), ElapsedSeconds: 10},
			want: LevelNeedsWork,
		},
		{
			name: "nan edge case",
			m:    Metrics{Accuracy: 1, ElapsedSeconds: 10, EdgeCaseScore: score(math.NaN()), SessionCount: 4},
			want: LevelProficient,
		},
		{
			name: "accuracy out of range",
			m:    Metrics{Accuracy: 1.5, ElapsedSeconds: 10},
			want: LevelNeedsWork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.m, DefaultThresholds()); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_MissingThresholdsUseDefaults(t *testing.T) {
	m := Metrics{Accuracy: 0.96, ElapsedSeconds: 120, EdgeCaseScore: score(0.85), SessionCount: 3}
	if got := Classify(m, Thresholds{}); got != LevelMastery {
		t.Errorf("Classify() with zero thresholds = %v, want mastery", got)
	}
	if got := Classify(m, Thresholds{TimeLimitSeconds: math.NaN()}); got != LevelMastery {
		t.Errorf("Classify() with NaN threshold = %v, want mastery", got)
	}
}

func TestClassify_Overrides(t *testing.T) {
	th := Thresholds{TightTimeLimitSeconds: 30, TimeLimitSeconds: 60}
	m := Metrics{Accuracy: 1, ElapsedSeconds: 45, EdgeCaseScore: score(1), SessionCount: 3}
	if got := Classify(m, th); got != LevelProficient {
		t.Errorf("Classify() = %v, want proficient under tighter limits", got)
	}
	m.ElapsedSeconds = 61
	if got := Classify(m, th); got != LevelNeedsWork {
		t.Errorf("Classify() = %v, want needs_work past the overridden limit", got)
	}
}

// Any metrics satisfying the mastery predicate must classify as mastery, and
// every input must land on exactly one of the three levels.
func TestClassify_TotalAndOrdinal(t *testing.T) {
	th := DefaultThresholds()
	accuracies := []float64{0, 0.5, 0.85, 0.9, 0.94, 0.95, 0.99, 1}
	elapsed := []float64{0, 60, 180, 181, 300, 301, 1000}
	edge := []*float64{nil, score(0), score(0.79), score(0.8), score(1)}
	sessions := []int{0, 1, 2, 3, 10}

	for _, a := range accuracies {
		for _, e := range elapsed {
			for _, ec := range edge {
				for _, s := range sessions {
					m := Metrics{Accuracy: a, ElapsedSeconds: e, EdgeCaseScore: ec, SessionCount: s}
					got := Classify(m, th)
					if got < LevelNeedsWork || got > LevelMastery {
						t.Fatalf("Classify(%+v) = %d, outside 1..3", m, got)
					}
					if isMastery(m, th) && got != LevelMastery {
						t.Fatalf("Classify(%+v) = %v, mastery predicate holds", m, got)
					}
					if again := Classify(m, th); again != got {
						t.Fatalf("Classify(%+v) not deterministic: %v then %v", m, got, again)
					}
				}
			}
		}
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		l    Level
		want string
	}{
		{LevelNeedsWork, "needs_work"},
		{LevelProficient, "proficient"},
		{LevelMastery, "mastery"},
		{Level(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.l.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.l, got, tt.want)
		}
	}
}
