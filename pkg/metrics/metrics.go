// Package metrics keeps process-local operation counters for the ops
// surface. Counters are named after operations, e.g. "sessions.create".
package metrics

import "sync"

// Registry is a goroutine-safe set of named counters.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewRegistry() *Registry {
	return &Registry{counters: map[string]int64{}}
}

// Incr increments the named counter by one.
func (x *Registry) Incr(name string) {
	x.Add(name, 1)
}

// Add increments the named counter by delta, creating it when absent.
func (x *Registry) Add(name string, delta int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.counters[name] += delta
}

// Snapshot returns a copy of all counters.
func (x *Registry) Snapshot() map[string]int64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make(map[string]int64, len(x.counters))
	for k, v := range x.counters {
		out[k] = v
	}
	return out
}

// Reset clears all counters.
func (x *Registry) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.counters = map[string]int64{}
}
