package integration

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownIntegration is returned when no factory is registered under a name.
	ErrUnknownIntegration = errors.New("unknown integration")
	// ErrDuplicateFactory is returned when a name is registered twice.
	ErrDuplicateFactory = errors.New("integration factory already registered")
)

// Registry maps declaration names to integration factories and guards access with a RWMutex.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the built-in integrations.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, name := range mdxNames {
		r.factories[name] = NewMDX
	}
	return r
}

// NewEmptyRegistry returns a registry without any factory.
func NewEmptyRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return fmt.Errorf("register integration: name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFactory, name)
	}
	r.factories[name] = factory
	return nil
}

// Build looks up the factory registered under name and calls it with options.
func (r *Registry) Build(name string, options map[string]any) (Integration, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.TrimSpace(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegration, name)
	}

	item, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("build integration %q: %w", name, err)
	}
	if item == nil {
		return nil, fmt.Errorf("build integration %q: factory returned nil", name)
	}
	return item, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
