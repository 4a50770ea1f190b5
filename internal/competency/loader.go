package competency

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// ErrNotFound is returned for an unknown competency ID.
var ErrNotFound = errors.New("competency not found")

// Problem records a file the loader rejected.
type Problem struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Loader loads and caches competency definitions from the filesystem.
type Loader struct {
	rootDir     string
	definitions map[string]Definition
	problems    []Problem
	mu          sync.RWMutex
}

// NewLoader creates a loader and loads every definition under rootDir.
// Invalid files are skipped and reported by Problems.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:     rootDir,
		definitions: make(map[string]Definition),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading competencies: %w", err)
	}

	slog.Info("competencies loaded", "definitions", len(l.definitions), "rejected", len(l.problems))
	return l, nil
}

// Get returns a definition by ID.
func (l *Loader) Get(id string) (Definition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.definitions[id]
	return d, ok
}

// All returns every loaded definition ordered by ID.
func (l *Loader) All() []Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	defs := make([]Definition, 0, len(l.definitions))
	for _, d := range l.definitions {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Problems returns the files that failed to load.
func (l *Loader) Problems() []Problem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Problem(nil), l.problems...)
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); err != nil {
		return err
	}
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return l.loadDefinition(path)
	})
}

func (l *Loader) loadDefinition(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	def, err := Parse(data)
	if err != nil {
		slog.Warn("skipping invalid competency", "path", path, "error", err)
		l.reject(path, err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, dup := l.definitions[def.ID]; dup {
		err := fmt.Errorf("duplicate competency id %q (already loaded %q)", def.ID, prev.Name)
		slog.Warn("skipping duplicate competency", "path", path, "id", def.ID)
		l.problems = append(l.problems, Problem{Path: path, Err: err.Error()})
		return nil
	}
	l.definitions[def.ID] = def
	return nil
}

func (l *Loader) reject(path string, err error) {
	l.mu.Lock()
	l.problems = append(l.problems, Problem{Path: path, Err: err.Error()})
	l.mu.Unlock()
}

// Parse decodes one YAML definition, checks it against the definition schema
// and checks that it describes a playable session.
func Parse(data []byte) (Definition, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Definition{}, fmt.Errorf("decoding yaml: %w", err)
	}
	if doc == nil {
		return Definition{}, errors.New("empty document")
	}

	s, err := schema()
	if err != nil {
		return Definition{}, fmt.Errorf("compiling schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Definition{}, fmt.Errorf("validating schema: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Definition{}, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("decoding definition: %w", err)
	}
	if err := def.SessionConfig().Validate(); err != nil {
		return Definition{}, fmt.Errorf("session: %w", err)
	}
	for _, sc := range def.Scenarios() {
		if err := sc.Validate(); err != nil {
			return Definition{}, fmt.Errorf("self test %q: %w", sc.Label, err)
		}
	}
	return def, nil
}
