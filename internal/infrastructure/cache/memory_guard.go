package cache

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/people-workflow/internal/application/port"
)

// MemoryGuard is a process-local port.TriggerGuard for single-instance
// deployments and tests
type MemoryGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryGuard creates an empty MemoryGuard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire holds key for ttl unless an unexpired hold exists
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)
	g.sweep(now)
	return true, nil
}

// Release drops key
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, key)
	return nil
}

// sweep removes expired keys; caller holds mu
func (g *MemoryGuard) sweep(now time.Time) {
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}
}

var _ port.TriggerGuard = (*MemoryGuard)(nil)
