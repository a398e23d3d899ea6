package mcpwire

import (
	"sync"
)

// HandlerEntry is one registered method: its capability and access-control
// metadata. Entries are owned by the Registry and replaced wholesale on
// re-registration.
type HandlerEntry struct {
	Method       string
	Handler      Handler
	AllowedRoles []string
}

// Registry maps method names to handler entries. Lookup is by exact
// method-name match. Registration is last-write-wins so tool sets can be
// hot-reloaded without tearing the router down.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]HandlerEntry
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]HandlerEntry),
	}
}

// Register binds a handler to a method name, replacing any prior entry for
// the same method. When no explicit roles are given, the handler's own
// AllowedRoles (if it implements RoleRestricted) apply.
func (r *Registry) Register(method string, h Handler, allowedRoles ...string) {
	roles := allowedRoles
	if len(roles) == 0 {
		if rr, ok := h.(RoleRestricted); ok {
			roles = rr.AllowedRoles()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[method] = HandlerEntry{
		Method:       method,
		Handler:      h,
		AllowedRoles: roles,
	}
}

// Lookup returns the entry registered for the method, if any.
func (r *Registry) Lookup(method string) (HandlerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[method]
	return entry, ok
}

// Methods returns the registered method names in no particular order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.entries))
	for method := range r.entries {
		methods = append(methods, method)
	}
	return methods
}
