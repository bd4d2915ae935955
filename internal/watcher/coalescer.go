package watcher

import (
	"sync"
	"time"
)

// Coalescer accumulates touched paths into a settled-path set once a
// debounce window has elapsed with no further activity on that path
// (§4.E "events within a debounce window accumulate into a path set").
// It holds no reference to fsnotify or the filesystem, so it is tested
// directly with injected timestamps rather than real file events.
type Coalescer struct {
	mu       sync.Mutex
	pending  map[string]time.Time
	debounce time.Duration
}

func NewCoalescer(debounce time.Duration) *Coalescer {
	return &Coalescer{pending: make(map[string]time.Time), debounce: debounce}
}

// Record notes activity on path at time t, resetting its debounce window.
func (c *Coalescer) Record(path string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[path] = t
}

// Settled returns and clears every path whose debounce window has elapsed
// as of now, leaving paths still inside their window untouched.
func (c *Coalescer) Settled(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for path, t := range c.pending {
		if now.Sub(t) >= c.debounce {
			out = append(out, path)
			delete(c.pending, path)
		}
	}
	return out
}

// Pending reports how many paths are still waiting out their window.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
