package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Registry caches one Entity per struct type.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	ordered  []*Entity
}

// Default is the process-wide registry.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[reflect.Type]*Entity)}
}

// Register builds the entities of the given samples (values or pointers of
// struct types) and records them, in order, as the registered set used by
// migrations and many-to-many lookups.
func (r *Registry) Register(samples ...any) error {
	for _, s := range samples {
		if s == nil {
			return fmt.Errorf("%w: nil sample", ErrNotStruct)
		}
		e, err := r.Entity(reflect.TypeOf(s))
		if err != nil {
			return err
		}

		r.mu.Lock()
		registered := false
		for _, o := range r.ordered {
			if o == e {
				registered = true
				break
			}
		}
		if !registered {
			r.ordered = append(r.ordered, e)
		}
		r.mu.Unlock()
	}
	return nil
}

// Entity returns the entity for t, building it on first use. Pointer types
// resolve to their element type.
func (r *Registry) Entity(t reflect.Type) (*Entity, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrNotStruct)
	}

	r.mu.RLock()
	e, ok := r.entities[t]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := buildEntity(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entities[t]; ok {
		return existing, nil
	}
	r.entities[t] = e
	return e, nil
}

// Of returns the entity of T.
func Of[T any](r *Registry) (*Entity, error) {
	return r.Entity(reflect.TypeOf((*T)(nil)).Elem())
}

// Entities returns the registered entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entity(nil), r.ordered...)
}

// Lookup finds a known entity by Go type name or table name,
// case-insensitively. Registered entities win over lazily built ones.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match := func(e *Entity) bool {
		return strings.EqualFold(e.Name, name) || strings.EqualFold(e.Table, name)
	}
	for _, e := range r.ordered {
		if match(e) {
			return e, true
		}
	}
	for _, e := range r.entities {
		if match(e) {
			return e, true
		}
	}
	return nil, false
}
