// Package gate decides whether a competency definition may be published.
// A definition is certified only when the built-in stress battery and the
// definition's own self-tests all pass against the current answer engine.
package gate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/stresstest"
)

// Certification is the gate's verdict for one definition fingerprint.
type Certification struct {
	CompetencyID string            `json:"competency_id"`
	Fingerprint  string            `json:"fingerprint"`
	Allowed      bool              `json:"allowed"`
	Report       stresstest.Report `json:"report"`
	CertifiedAt  time.Time         `json:"certified_at"`
}

// Cache stores certifications by fingerprint.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*Certification, bool, error)
	Put(ctx context.Context, c Certification) error
}

// Gate certifies definitions, reusing cached verdicts for unchanged ones.
type Gate struct {
	cache     Cache
	scenarios func() []stresstest.Scenario
	now       func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithScenarios replaces the built-in battery.
func WithScenarios(fn func() []stresstest.Scenario) Option {
	return func(g *Gate) { g.scenarios = fn }
}

// WithClock overrides the certification timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a gate. A nil cache certifies on every call.
func New(cache Cache, opts ...Option) *Gate {
	g := &Gate{
		cache:     cache,
		scenarios: stresstest.DefaultScenarios,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Certify returns the certification for def, running the battery when no
// cached verdict exists for its fingerprint. Cache failures are logged and
// never change the verdict.
func (g *Gate) Certify(ctx context.Context, def competency.Definition) (Certification, error) {
	fp, err := Fingerprint(def)
	if err != nil {
		return Certification{}, err
	}

	if g.cache != nil {
		cached, found, err := g.cache.Get(ctx, fp)
		if err != nil {
			slog.Warn("certification cache read failed", "competency_id", def.ID, "error", err)
		} else if found {
			return *cached, nil
		}
	}

	scenarios := append(g.scenarios(), def.Scenarios()...)
	report := stresstest.Run(scenarios)
	cert := Certification{
		CompetencyID: def.ID,
		Fingerprint:  fp,
		Allowed:      report.Passed(),
		Report:       report,
		CertifiedAt:  g.now().UTC(),
	}

	if cert.Allowed {
		slog.Info("competency certified", "competency_id", def.ID, "fingerprint", fp, "scenarios", len(report.Scenarios))
	} else {
		failed := make([]string, 0)
		for _, f := range report.Failures() {
			failed = append(failed, f.Label)
		}
		slog.Warn("competency certification failed", "competency_id", def.ID, "fingerprint", fp, "failed", failed)
	}

	if g.cache != nil {
		if err := g.cache.Put(ctx, cert); err != nil {
			slog.Warn("certification cache write failed", "competency_id", def.ID, "error", err)
		}
	}
	return cert, nil
}

// engineProfile captures the answer engine parameters a certification
// depends on. Changing any of them yields new fingerprints.
type engineProfile struct {
	Revision               string                 `json:"revision,omitempty"`
	ShortAnswerLen         int                    `json:"short_answer_len"`
	HighOverlapPercent     float64                `json:"high_overlap_percent"`
	SemanticOverlapPercent float64                `json:"semantic_overlap_percent"`
	CoverageOverlapPercent float64                `json:"coverage_overlap_percent"`
	SemanticGroups         []answer.SemanticGroup `json:"semantic_groups"`
	Battery                []stresstest.Scenario  `json:"battery"`
}

// buildRevision identifies the running binary so that engine changes
// which keep every constant intact still invalidate shared certifications.
var buildRevision = sync.OnceValue(func() string {
	return revisionFrom(debug.ReadBuildInfo())
})

func revisionFrom(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev != "" {
		if dirty {
			rev += "-dirty"
		}
		return rev
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return ""
}

// Fingerprint is the hex BLAKE2b-256 digest of the canonical JSON of the
// definition together with the engine profile, built-in battery and build
// revision.
func Fingerprint(def competency.Definition) (string, error) {
	return fingerprint(def, buildRevision())
}

func fingerprint(def competency.Definition, revision string) (string, error) {
	doc := struct {
		Engine     engineProfile          `json:"engine"`
		Definition competency.Definition `json:"definition"`
	}{
		Engine: engineProfile{
			Revision:               revision,
			ShortAnswerLen:         answer.ShortAnswerLen,
			HighOverlapPercent:     answer.HighOverlapPercent,
			SemanticOverlapPercent: answer.SemanticOverlapPercent,
			CoverageOverlapPercent: answer.CoverageOverlapPercent,
			SemanticGroups:         answer.SemanticGroups,
			Battery:                stresstest.DefaultScenarios(),
		},
		Definition: def,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding definition: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
