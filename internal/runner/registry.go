package runner

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when no live run has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// Registry keeps the live runs by session id.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

func (g *Registry) Add(r *Run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs[r.Session.ID] = r
}

func (g *Registry) Get(id string) (*Run, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runs[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

// Remove closes and forgets the run with id, if any.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	r, ok := g.runs[id]
	delete(g.runs, id)
	g.mu.Unlock()
	if ok {
		r.Close()
	}
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}

// Idle lists runs that have seen no event for at least timeout.
func (g *Registry) Idle(now time.Time, timeout time.Duration) []*Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var idle []*Run
	for _, r := range g.runs {
		if r.IdleFor(now) >= timeout {
			idle = append(idle, r)
		}
	}
	return idle
}

// CloseAll closes every run. Used on shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	runs := g.runs
	g.runs = make(map[string]*Run)
	g.mu.Unlock()
	for _, r := range runs {
		r.Close()
	}
}
