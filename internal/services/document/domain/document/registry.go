package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the document types a runtime can create and rehydrate.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register validates and adds a document type.
func (r *Registry) Register(t *Type) error {
	if r == nil {
		return errors.New("registry is required")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(t.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = make(map[string]*Type)
	}
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("document type already registered: %s", name)
	}
	r.types[name] = t
	return nil
}

// Lookup returns the registered type for name.
func (r *Registry) Lookup(name string) (*Type, error) {
	if r == nil {
		return nil, ErrTypeUnknown
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTypeRequired
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeUnknown, name)
	}
	return t, nil
}

// Names lists registered type names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
