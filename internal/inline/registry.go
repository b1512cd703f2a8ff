// Package inline replaces calls to known value-producing methods with the
// constant they return. A pass scans every block of a method for registered
// call sites, computes each result through an injected Handler and finally
// patches the blocks, in that order.
package inline

import (
	"sort"
	"sync"

	"inliner/internal/il"
)

// Handler computes the value a call to method would return for the given
// arguments. gim is nil unless the call site instantiates a generic method.
// Handlers must be deterministic.
type Handler func(method *il.MethodRef, gim *il.MethodSpec, args []any) (any, error)

type registryEntry struct {
	method  *il.MethodRef
	handler Handler
}

// Registry maps method identities to handlers. Lookups are structural, so any
// reference naming the same method finds the same entry.
type Registry struct {
	entries map[il.MethodIdentity]registryEntry

	mu   sync.Mutex
	used map[il.MethodIdentity]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[il.MethodIdentity]registryEntry),
		used:    make(map[il.MethodIdentity]bool),
	}
}

// Register associates h with method. A nil method or handler is ignored.
// Registering the same identity again replaces the handler.
func (r *Registry) Register(method *il.MethodRef, h Handler) {
	if method == nil || h == nil {
		return
	}
	r.entries[method.Identity()] = registryEntry{method: method, handler: h}
}

// Find returns the handler registered for method.
func (r *Registry) Find(method *il.MethodRef) (Handler, bool) {
	if method == nil {
		return nil, false
	}
	e, ok := r.entries[method.Identity()]
	return e.handler, ok
}

// Count returns the number of registered methods.
func (r *Registry) Count() int {
	return len(r.entries)
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []il.MethodIdentity {
	ids := make([]il.MethodIdentity, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sortIdentities(ids)
	return ids
}

// Methods returns the registered method references, ordered by identity.
func (r *Registry) Methods() []*il.MethodRef {
	ids := r.Identities()
	methods := make([]*il.MethodRef, len(ids))
	for i, id := range ids {
		methods[i] = r.entries[id].method
	}
	return methods
}

// MarkUsed records that a call to method was inlined.
func (r *Registry) MarkUsed(method *il.MethodRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[method.Identity()] = true
}

// Used returns the identities that produced at least one inlined value.
func (r *Registry) Used() []il.MethodIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]il.MethodIdentity, 0, len(r.used))
	for id := range r.used {
		ids = append(ids, id)
	}
	sortIdentities(ids)
	return ids
}

func sortIdentities(ids []il.MethodIdentity) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
