// Package registry holds the set of handlers a router may delegate to.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentroute/core"
)

// ErrEmptyName is returned when registering a handler with a blank name.
var ErrEmptyName = errors.New("handler name is empty")

// Registry is a thread-safe, insertion-ordered set of handlers keyed by name.
// It is read-mostly: handlers are usually registered during setup and looked
// up on every turn.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]core.Handler
	order []string
}

// New creates an empty registry holding the given handlers. It fails with
// ErrDuplicateName if two handlers share a name.
func New(handlers ...core.Handler) (*Registry, error) {
	r := &Registry{byKey: make(map[string]core.Handler)}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds h. Returns ErrDuplicateName if the name is taken.
func (r *Registry) Register(h core.Handler) error {
	name := h.Name()
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[name]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateName, name)
	}

	r.byKey[name] = h
	r.order = append(r.order, name)

	return nil
}

// Get returns the handler registered under name or ErrNotFound.
func (r *Registry) Get(name string) (core.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byKey[name]
	if !ok {
		return nil, fmt.Errorf("handler %q: %w", name, core.ErrNotFound)
	}

	return h, nil
}

// List returns all handlers in registration order.
func (r *Registry) List() []core.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byKey[name])
	}

	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Validate returns ErrEmptyRegistry when no handler is registered.
func (r *Registry) Validate() error {
	if r.Len() == 0 {
		return core.ErrEmptyRegistry
	}
	return nil
}
