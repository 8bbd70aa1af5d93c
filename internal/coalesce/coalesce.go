// Package coalesce implements the debounced write coalescer (spec
// §4.4): at most one pending timer per collection, coalescing a burst of
// mutations into a single save. There is no direct teacher analog for a
// debounce timer map; the per-key single-timer bookkeeping follows the
// same mutex-guarded-map shape as GoKitt/pkg/docstore/store.go.
package coalesce

import (
	"sync"
	"time"
)

// SaveFunc persists the current state of one collection. Coalescer
// never inspects the error itself; callers observe save health via
// Flush's returned error or their own synchronous save path.
type SaveFunc func(collection string) error

// Coalescer maintains at most one pending timer per collection.
type Coalescer struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	debounce time.Duration
	save     SaveFunc
}

// New builds a Coalescer with the given debounce interval (spec default
// 100ms) and save callback.
func New(debounce time.Duration, save SaveFunc) *Coalescer {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Coalescer{timers: make(map[string]*time.Timer), debounce: debounce, save: save}
}

// Schedule (re)arms the timer for collection, canceling any existing
// one. On fire, it removes its own entry and runs the save effect;
// save failures are swallowed (the next mutation re-arms the timer).
func (c *Coalescer) Schedule(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[collection]; ok {
		t.Stop()
	}
	c.timers[collection] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, collection)
		c.mu.Unlock()
		_ = c.save(collection)
	})
}

// PendingCount reports the number of live timers.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Flush executes every pending save immediately and in parallel,
// returning when all complete. It propagates the first error
// encountered, if any.
func (c *Coalescer) Flush() error {
	c.mu.Lock()
	collections := make([]string, 0, len(c.timers))
	for name, t := range c.timers {
		t.Stop()
		collections = append(collections, name)
		delete(c.timers, name)
	}
	c.mu.Unlock()

	if len(collections) == 0 {
		return nil
	}

	errs := make(chan error, len(collections))
	var wg sync.WaitGroup
	for _, name := range collections {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			errs <- c.save(name)
		}(name)
	}
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Shutdown flushes pending saves (best-effort) then cancels any
// remaining timers — the scope finalizer from spec §4.4/§5.
func (c *Coalescer) Shutdown() {
	_ = c.Flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
}
