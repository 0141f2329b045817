package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// ComponentSpec is what a component factory receives: the component type,
// its scoped params and the node it is built for.
type ComponentSpec struct {
	Type   string
	Node   string
	Params config.Params
	Logger *logger.Logger
}

// Factory builds a component.
type Factory[T any] func(spec ComponentSpec) (T, error)

// Registry maps component type keys to factories.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry. kind names the component family
// in error messages.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]Factory[T])}
}

// Register adds a factory. Registering a key twice is an error.
func (r *Registry[T]) Register(typeKey string, factory Factory[T]) error {
	if typeKey == "" {
		return fmt.Errorf("%s type key is empty", r.kind)
	}
	if factory == nil {
		return fmt.Errorf("%s factory for '%s' is nil", r.kind, typeKey)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeKey]; exists {
		return fmt.Errorf("%s '%s' already registered", r.kind, typeKey)
	}
	r.factories[typeKey] = factory
	return nil
}

// MustRegister is Register that panics, for process start-up wiring.
func (r *Registry[T]) MustRegister(typeKey string, factory Factory[T]) {
	if err := r.Register(typeKey, factory); err != nil {
		panic(err)
	}
}

// New builds the component named by spec.Type.
func (r *Registry[T]) New(spec ComponentSpec) (T, error) {
	var zero T

	r.mu.RLock()
	factory, ok := r.factories[spec.Type]
	r.mu.RUnlock()

	if !ok {
		return zero, detecterrors.NewOperatorError(spec.Type, fmt.Errorf("no %s registered for type '%s'", r.kind, spec.Type))
	}

	component, err := factory(spec)
	if err != nil {
		return zero, fmt.Errorf("create %s '%s': %w", r.kind, spec.Type, err)
	}
	return component, nil
}

// Types returns the registered keys, sorted.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Components groups the registries of every pluggable component family.
type Components struct {
	Detectors      *Registry[Detector]
	DataFetchers   *Registry[DataFetcher]
	Triggers       *Registry[EventTrigger]
	PostProcessors *Registry[PostProcessor]
	IndexFillers   *Registry[IndexFiller]
	Enumerators    *Registry[EnumerationStrategy]
}

// NewComponents returns empty registries.
func NewComponents() *Components {
	return &Components{
		Detectors:      NewRegistry[Detector]("detector"),
		DataFetchers:   NewRegistry[DataFetcher]("data source"),
		Triggers:       NewRegistry[EventTrigger]("event trigger"),
		PostProcessors: NewRegistry[PostProcessor]("post-processor"),
		IndexFillers:   NewRegistry[IndexFiller]("index filler"),
		Enumerators:    NewRegistry[EnumerationStrategy]("enumerator"),
	}
}
