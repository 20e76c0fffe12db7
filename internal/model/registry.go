package model

import (
	"sync"
)

// Registry holds the process-wide model slot. Readers always observe a
// complete State; writers replace it under the lock and bump the version.
type Registry struct {
	mu      sync.RWMutex
	current *State
	version int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Current() (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.current != nil
}

func (r *Registry) Ready() bool {
	_, ok := r.Current()
	return ok
}

// Swap publishes s as the current model. The stored copy carries the next
// version number; s itself is not modified.
func (r *Registry) Swap(s *State) *State {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := *s
	if next.Version <= r.version {
		next.Version = r.version + 1
	}
	r.version = next.Version
	r.current = &next
	return r.current
}

func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
