package effect

import (
	"fmt"
	"sort"
)

type registration struct {
	spec Spec
	fn   Handler
}

// Registry maps effect type identity to registered handlers.
//
// Registration happens before execution starts; the registry is read-only
// while the engine runs. A snapshot of registered names participates in
// trace determinism: two executions compare only under the same registry.
type Registry struct {
	handlers map[TypeID]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[TypeID]*registration)}
}

// Register binds a handler to the effect type derived from spec.Name.
// Returns the effect type ID for use in CallEffect instructions.
// Duplicate registration for the same name is an error.
func (r *Registry) Register(spec Spec, fn Handler) (TypeID, error) {
	if spec.Name == "" {
		return TypeID{}, fmt.Errorf("register handler: name is required")
	}
	if fn == nil {
		return TypeID{}, fmt.Errorf("register handler %s: nil handler", spec.Name)
	}
	id := TypeIDFor(spec.Name)
	if _, exists := r.handlers[id]; exists {
		return TypeID{}, fmt.Errorf("register handler %s: already registered", spec.Name)
	}
	r.handlers[id] = &registration{spec: spec, fn: fn}
	return id, nil
}

// Lookup returns the spec and handler for an effect type.
func (r *Registry) Lookup(id TypeID) (Spec, Handler, bool) {
	reg, ok := r.handlers[id]
	if !ok {
		return Spec{}, nil, false
	}
	return reg.spec, reg.fn, true
}

// Names returns all registered handler names in ascending order.
// Deterministic iteration for logs and diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for _, reg := range r.handlers {
		names = append(names, reg.spec.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}
