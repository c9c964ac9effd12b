package ratelimit

import (
	"sort"
	"sync"
)

// Registry keeps one Limiter per name.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	opts     []Option
}

// NewRegistry creates an empty registry. opts are applied to every limiter it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		opts:     opts,
	}
}

// Get returns the limiter registered under name, creating it from cfg on
// first use. Later calls ignore cfg.
func (r *Registry) Get(name string, cfg Config) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[name]; ok {
		return l
	}
	l := New(cfg, r.opts...)
	r.limiters[name] = l
	return l
}

// Lookup returns the named limiter if it exists.
func (r *Registry) Lookup(name string) (*Limiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[name]
	return l, ok
}

// Names lists registered limiters in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats snapshots every registered limiter.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	limiters := make(map[string]*Limiter, len(r.limiters))
	for name, l := range r.limiters {
		limiters[name] = l
	}
	r.mu.Unlock()

	out := make(map[string]Stats, len(limiters))
	for name, l := range limiters {
		out[name] = l.Stats()
	}
	return out
}

var defaultRegistry = NewRegistry()

// Get returns a named limiter from the process-wide registry.
func Get(name string, cfg Config) *Limiter {
	return defaultRegistry.Get(name, cfg)
}
