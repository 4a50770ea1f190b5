package live

import (
	"sync"

	"github.com/p-n-ai/pai-arena/internal/session"
)

// Registry tracks running sessions and caps how many may run at once.
type Registry struct {
	max     int
	runners map[string]*session.Runner
	mu      sync.RWMutex
}

// NewRegistry creates a registry admitting at most max sessions.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:     max,
		runners: make(map[string]*session.Runner),
	}
}

// Add admits a runner. It reports false when the registry is full.
func (r *Registry) Add(runner *session.Runner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.runners) >= r.max {
		return false
	}
	r.runners[runner.ID()] = runner
	return true
}

// Remove forgets a runner.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.runners, id)
	r.mu.Unlock()
}

// Get returns a running session by ID.
func (r *Registry) Get(id string) (*session.Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[id]
	return runner, ok
}

// Len returns the number of running sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runners)
}
