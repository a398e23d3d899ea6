package mcpwire

// RequestContext carries per-request caller information through dispatch:
// the originating session, the caller's roles for access control, and
// free-form metadata for handlers.
type RequestContext struct {
	// SessionID identifies the transport session the request arrived on.
	SessionID string

	// Roles are the caller's role names, matched against a handler's
	// allowed roles during dispatch.
	Roles []string

	// Metadata carries transport- or middleware-provided values that
	// handlers may consult. It is never interpreted by the router.
	Metadata map[string]string
}

// HasAnyRole reports whether the context carries at least one of the given
// roles. An empty required set always passes.
func (rc RequestContext) HasAnyRole(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range rc.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
