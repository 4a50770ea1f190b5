// Package results persists finalized session results and session telemetry.
package results

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/p-n-ai/pai-arena/internal/session"
)

// ErrNotFound is returned when no result exists for a session ID.
var ErrNotFound = errors.New("result not found")

// Store persists finalized session results. It satisfies session.Sink.
type Store interface {
	SaveResult(ctx context.Context, result session.Result) error
	GetResult(ctx context.Context, sessionID string) (*session.Result, error)
	// ListResults returns a player's results for a competency, newest first.
	ListResults(ctx context.Context, playerID, competencyID string) ([]session.Result, error)
	// CountCompleted returns how many sessions the player has finalized for
	// the competency.
	CountCompleted(ctx context.Context, playerID, competencyID string) (int, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	results map[string]session.Result
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]session.Result),
	}
}

func (s *MemoryStore) SaveResult(_ context.Context, result session.Result) error {
	if err := validateResult(result); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[result.SessionID]; exists {
		return fmt.Errorf("result already saved: %s", result.SessionID)
	}
	s.results[result.SessionID] = result
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, sessionID string) (*session.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return &r, nil
}

func (s *MemoryStore) ListResults(_ context.Context, playerID, competencyID string) ([]session.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []session.Result
	for _, r := range s.results {
		if r.PlayerID == playerID && r.CompetencyID == competencyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out, nil
}

func (s *MemoryStore) CountCompleted(_ context.Context, playerID, competencyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.results {
		if r.PlayerID == playerID && r.CompetencyID == competencyID {
			n++
		}
	}
	return n, nil
}

func validateResult(r session.Result) error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	if r.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if r.CompetencyID == "" {
		return errors.New("competency_id is required")
	}
	return nil
}
