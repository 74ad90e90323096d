// Package provider maps provider kinds to text generation backends.
//
// # Adding a New Provider
//
// Implement domain.TextGenerator in its own package and expose a factory
// constructor. Register it on the registry the binaries build (see
// internal/registration):
//
//	reg.MustRegister(provider.Factory{
//	    Kind:        gemini.ProviderKind,
//	    Description: "Google Gemini API",
//	    Create:      func() (domain.TextGenerator, error) { return gemini.New(cfg.APIKey) },
//	})
//
// Neither the registry nor the transform service needs to change.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// Factory describes how to build a backend of a specific kind.
type Factory struct {
	// Kind is the identifier clients use to select this backend.
	Kind domain.ProviderKind

	// Description is a human-readable summary shown by /api/v1/providers.
	Description string

	// Create builds a new backend instance. Errors are reported to the caller
	// of Resolve as a BackendConstructionError.
	Create func() (domain.TextGenerator, error)
}

// Registry holds factories and the backend instances cached for reuse.
//
// Resolve does not hold a lock while a factory runs, so two goroutines that
// resolve the same uncached kind at once may both construct an instance. The
// last one stored wins; both are equivalent, so callers never observe the
// difference beyond an extra construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.ProviderKind]Factory
	instances map[domain.ProviderKind]domain.TextGenerator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[domain.ProviderKind]Factory),
		instances: make(map[domain.ProviderKind]domain.TextGenerator),
	}
}

// Register adds a factory. It fails on an empty kind, a nil Create function,
// or a kind that is already registered.
func (r *Registry) Register(f Factory) error {
	if f.Kind == "" {
		return fmt.Errorf("provider factory kind cannot be empty")
	}
	if f.Create == nil {
		return fmt.Errorf("provider factory %q must have a Create function", f.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[f.Kind]; exists {
		return fmt.Errorf("provider factory %q already registered", f.Kind)
	}
	r.factories[f.Kind] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Resolve returns a backend for kind. With reuseInstance set, a cached
// instance is returned as-is when present, and a newly built one is cached.
func (r *Registry) Resolve(kind domain.ProviderKind, reuseInstance bool) (domain.TextGenerator, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	var cached domain.TextGenerator
	if reuseInstance {
		cached = r.instances[kind]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.UnsupportedProviderError{Kind: kind, Registered: r.Kinds()}
	}
	if cached != nil {
		return cached, nil
	}

	gen, err := f.Create()
	if err != nil {
		return nil, &domain.BackendConstructionError{Kind: kind, Err: err}
	}

	if reuseInstance {
		r.mu.Lock()
		r.instances[kind] = gen
		r.mu.Unlock()
	}
	return gen, nil
}

// Check reports an UnsupportedProviderError if kind is not registered.
func (r *Registry) Check(kind domain.ProviderKind) error {
	if r.IsRegistered(kind) {
		return nil
	}
	return &domain.UnsupportedProviderError{Kind: kind, Registered: r.Kinds()}
}

// ParseProviderKind converts s to a registered kind. Matching is
// case-sensitive.
func (r *Registry) ParseProviderKind(s string) (domain.ProviderKind, error) {
	kind := domain.ProviderKind(s)
	if err := r.Check(kind); err != nil {
		return "", err
	}
	return kind, nil
}

// IsRegistered returns true if a factory exists for kind.
func (r *Registry) IsRegistered(kind domain.ProviderKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []domain.ProviderKind {
	factories := r.Factories()
	kinds := make([]domain.ProviderKind, len(factories))
	for i, f := range factories {
		kinds[i] = f.Kind
	}
	return kinds
}

// Factories returns all registered factories sorted by kind.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Factory, 0, len(r.factories))
	for _, f := range r.factories {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

// Reset drops every cached instance. Factories stay registered.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[domain.ProviderKind]domain.TextGenerator)
}
