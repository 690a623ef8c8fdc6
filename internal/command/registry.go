package command

import (
	"fmt"
	"sync"
)

// Registry is the static command table, populated once at startup and
// frozen before the first dispatch. Lookup is a case-sensitive exact match
// against registered aliases.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	byName map[string]*Registration
	all    []*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Registration)}
}

// Register adds a plugin under all of its aliases. Duplicate aliases and
// registration after Freeze are programming errors.
func (r *Registry) Register(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen")
	}
	if len(reg.Names) == 0 {
		return fmt.Errorf("registration has no names")
	}
	if reg.Run == nil {
		return fmt.Errorf("registration %q has no handler", reg.Names[0])
	}
	for _, name := range reg.Names {
		if _, dup := r.byName[name]; dup {
			return fmt.Errorf("duplicate command alias %q", name)
		}
	}
	for _, name := range reg.Names {
		r.byName[name] = reg
	}
	r.all = append(r.all, reg)
	return nil
}

// MustRegister is Register that panics; used for the built-in catalogue
// where a failure is a startup bug.
func (r *Registry) MustRegister(reg *Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the registration for an alias.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[name]
	return reg, ok
}

// All returns the unique registrations in registration order.
func (r *Registry) All() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, len(r.all))
	copy(out, r.all)
	return out
}
