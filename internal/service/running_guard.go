package service

import (
	"context"
	"sync"
)

// ── jobGuard ───────────────────────────────────────────────

// jobGuard lets one job per key run at a time (one backup, one marker
// load per floor) and lets shutdown wait for whatever is still running.
type jobGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// begin claims key. It returns false when a job with that key is running.
func (g *jobGuard) begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		g.active = make(map[string]struct{})
	}
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	g.wg.Add(1)
	return true
}

// end releases a key claimed by begin.
func (g *jobGuard) end(key string) {
	g.mu.Lock()
	delete(g.active, key)
	g.mu.Unlock()
	g.wg.Done()
}

// wait blocks until no job is running or ctx is done.
func (g *jobGuard) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
