package unit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownIdentifier is returned when no factory is registered for an identity.
	ErrUnknownIdentifier = errors.New("plugin not known")

	// ErrRegistrySealed is returned when registering after Seal.
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrDuplicateIdentifier is returned when an identity is registered twice.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
)

// Factory creates a fresh unit instance.
type Factory func() Unit

// Registry maps identity strings to factories. It is filled at startup and
// sealed; after Seal it is read-only and lookups need no coordination with
// registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	sealed    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for identifier.
func (r *Registry) Register(identifier string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.factories[identifier]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, identifier)
	}
	r.factories[identifier] = f
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Create instantiates the unit registered under identifier.
func (r *Registry) Create(identifier string) (Unit, error) {
	r.mu.RLock()
	f, ok := r.factories[identifier]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, identifier)
	}
	return f(), nil
}

// Identifiers returns all registered identities, sorted.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IdentifierAt returns the identity for a 1-based selection index over
// Identifiers, or "" when out of range.
func (r *Registry) IdentifierAt(index int) string {
	ids := r.Identifiers()
	if index < 1 || index > len(ids) {
		return ""
	}
	return ids[index-1]
}

// RegisterBuiltins adds the in-process units.
func RegisterBuiltins(r *Registry) error {
	builtins := []Factory{
		func() Unit { return NewGain() },
		func() Unit { return NewPan() },
		func() Unit { return NewMute() },
	}
	for _, f := range builtins {
		if err := r.Register(IdentifierOf(f()), f); err != nil {
			return err
		}
	}
	return nil
}
