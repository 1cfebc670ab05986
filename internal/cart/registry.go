package cart

import (
	"sync"
	"time"
)

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// Registry owns one Store per authenticated session.
type Registry struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{
		now:      time.Now,
		sessions: make(map[string]*registryEntry),
	}
}

// For returns the session's store, creating it on first use.
func (r *Registry) For(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		entry = &registryEntry{store: NewStore()}
		r.sessions[sessionID] = entry
	}
	entry.lastSeen = r.now()
	return entry.store
}

// Drop discards the session's store. Called on logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Move re-keys a session's store after its access id rotates. A missing
// source is a no-op.
func (r *Registry) Move(from, to string) {
	if from == to {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[from]
	if !ok {
		return
	}
	delete(r.sessions, from)
	entry.lastSeen = r.now()
	r.sessions[to] = entry
}

// Sweep drops stores untouched for longer than idle and returns how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	removed := 0
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
