package listings

import (
	"sync"
	"time"
)

const defaultGenerationTTL = 10 * time.Minute

// Ticket identifies one browse request within a client's sequence.
type Ticket struct {
	Key        string
	Generation uint64
}

type generationEntry struct {
	latest uint64
	seen   time.Time
}

// Generations tracks the newest browse generation each client has started so
// responses to older requests can be discarded.
type Generations struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	clients map[string]generationEntry
}

func NewGenerations(ttl time.Duration) *Generations {
	if ttl <= 0 {
		ttl = defaultGenerationTTL
	}
	return &Generations{
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]generationEntry),
	}
}

// Begin records generation for key. It returns false when the client already
// started a newer request. An empty key is never tracked.
func (g *Generations) Begin(key string, generation uint64) (Ticket, bool) {
	t := Ticket{Key: key, Generation: generation}
	if key == "" {
		return t, true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.clients[key]
	if ok && generation < entry.latest {
		return t, false
	}
	g.clients[key] = generationEntry{latest: generation, seen: g.now()}
	return t, true
}

// Current reports whether no newer request for the ticket's client has begun.
func (g *Generations) Current(t Ticket) bool {
	if t.Key == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.clients[t.Key]
	if !ok {
		return true
	}
	return entry.latest <= t.Generation
}

// Sweep forgets clients idle for longer than the TTL and returns how many were dropped.
func (g *Generations) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-g.ttl)
	dropped := 0
	for key, entry := range g.clients {
		if entry.seen.Before(cutoff) {
			delete(g.clients, key)
			dropped++
		}
	}
	return dropped
}

func (g *Generations) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}
