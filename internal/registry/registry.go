// Package registry selects the extraction adapter for a source.
package registry

import (
	"slices"
	"sync"

	"github.com/JakeFAU/news-crawler/internal/adapters"
	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// Registry holds adapters in registration order.
type Registry struct {
	mu       sync.RWMutex
	adapters []adapters.Adapter
}

// New creates a Registry pre-populated with adapters.
func New(list ...adapters.Adapter) *Registry {
	r := &Registry{}
	for _, a := range list {
		r.Register(a)
	}
	return r
}

// Register appends an adapter. Nil adapters are ignored.
func (r *Registry) Register(adapter adapters.Adapter) {
	if adapter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, adapter)
}

// Resolve returns the highest-priority adapter supporting source. Adapters with
// equal priority keep registration order.
func (r *Registry) Resolve(source crawler.Source) (adapters.Adapter, error) {
	r.mu.RLock()
	candidates := make([]adapters.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.Supports(source) {
			candidates = append(candidates, a)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, &crawler.NoAdapterError{SourceID: source.ID, SourceName: source.Name}
	}
	slices.SortStableFunc(candidates, func(a, b adapters.Adapter) int {
		return b.Priority() - a.Priority()
	})
	return candidates[0], nil
}

// Adapters lists registered adapters in registration order.
func (r *Registry) Adapters() []adapters.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.adapters)
}

// ByName returns the adapter whose Name matches.
func (r *Registry) ByName(name string) (adapters.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
