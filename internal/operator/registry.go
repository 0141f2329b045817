package operator

import (
	"fmt"
	"sort"
	"sync"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// Registry maps plan node types to operator factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the provided type.
func (r *Registry) Register(typeKey string, factory Factory) error {
	if typeKey == "" {
		return detecterrors.NewOperatorError(typeKey, fmt.Errorf("type key is empty"))
	}
	if factory == nil {
		return detecterrors.NewOperatorError(typeKey, fmt.Errorf("factory is nil"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeKey]; exists {
		return detecterrors.NewOperatorError(typeKey, fmt.Errorf("operator already registered"))
	}

	r.factories[typeKey] = factory
	return nil
}

// MustRegister is Register that panics.
func (r *Registry) MustRegister(typeKey string, factory Factory) {
	if err := r.Register(typeKey, factory); err != nil {
		panic(err)
	}
}

// New creates an operator for the type.
func (r *Registry) New(typeKey string) (Operator, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeKey]
	r.mu.RUnlock()

	if !ok {
		return nil, detecterrors.NewOperatorError(typeKey, fmt.Errorf("no operator registered"))
	}

	op := factory()
	if op == nil {
		return nil, detecterrors.NewOperatorError(typeKey, fmt.Errorf("factory returned nil"))
	}
	return op, nil
}

// Has reports whether the type is registered.
func (r *Registry) Has(typeKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeKey]
	return ok
}

// Types lists registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for key := range r.factories {
		types = append(types, key)
	}
	sort.Strings(types)
	return types
}
