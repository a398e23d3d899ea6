package mcpwire

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler is the capability contract every registered method implements:
// one asynchronous call taking the decoded request parameters and the
// request context. The result is serialized into the response by the router.
//
// Handlers may additionally implement Validator, RoleRestricted, or Definer
// to expose validation hooks, access-control metadata, or a self-description.
type Handler interface {
	Handle(ctx context.Context, rc RequestContext, params json.RawMessage) (any, error)
}

// Validator is an optional handler interface. Validate runs synchronously
// before Handle when request validation is enabled; a failure short-circuits
// dispatch and the handler is never invoked.
type Validator interface {
	Validate(params json.RawMessage) error
}

// RoleRestricted is an optional handler interface declaring the roles allowed
// to invoke the handler. An empty or absent set means unrestricted.
type RoleRestricted interface {
	AllowedRoles() []string
}

// Definer is an optional handler interface exposing a self-description, such
// as a tool definition with its input schema.
type Definer interface {
	Definition() any
}

// ResultValidator is an optional handler interface. ValidateResult runs over
// the handler's result before it is serialized into a response, when response
// validation is enabled; a failure discards the result.
type ResultValidator interface {
	ValidateResult(result any) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, rc RequestContext, params json.RawMessage) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, rc RequestContext, params json.RawMessage) (any, error) {
	return f(ctx, rc, params)
}

// TypedHandler wraps a capability function typed on its params and result,
// decoding raw JSON params into P before invocation. Use NewHandler to
// construct one and the With* methods to attach metadata.
type TypedHandler[P, R any] struct {
	fn         func(ctx context.Context, rc RequestContext, params P) (R, error)
	validateFn func(params P) error
	roles      []string
	definition any
}

// NewHandler wraps fn into a TypedHandler that decodes params into P.
func NewHandler[P, R any](fn func(ctx context.Context, rc RequestContext, params P) (R, error)) *TypedHandler[P, R] {
	return &TypedHandler[P, R]{fn: fn}
}

// WithValidate attaches a pure validation hook run before the handler.
func (h *TypedHandler[P, R]) WithValidate(fn func(params P) error) *TypedHandler[P, R] {
	h.validateFn = fn
	return h
}

// WithAllowedRoles restricts the handler to callers holding at least one of
// the given roles.
func (h *TypedHandler[P, R]) WithAllowedRoles(roles ...string) *TypedHandler[P, R] {
	h.roles = roles
	return h
}

// WithDefinition attaches a self-description, such as a Tool definition.
func (h *TypedHandler[P, R]) WithDefinition(def any) *TypedHandler[P, R] {
	h.definition = def
	return h
}

// Handle implements Handler.
func (h *TypedHandler[P, R]) Handle(ctx context.Context, rc RequestContext, params json.RawMessage) (any, error) {
	p, err := h.decode(params)
	if err != nil {
		return nil, err
	}
	return h.fn(ctx, rc, p)
}

// Validate implements Validator. It checks that params decode into P and
// runs the attached validation hook, if any.
func (h *TypedHandler[P, R]) Validate(params json.RawMessage) error {
	p, err := h.decode(params)
	if err != nil {
		return err
	}
	if h.validateFn != nil {
		if err := h.validateFn(p); err != nil {
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
	}
	return nil
}

// AllowedRoles implements RoleRestricted.
func (h *TypedHandler[P, R]) AllowedRoles() []string { return h.roles }

// Definition implements Definer.
func (h *TypedHandler[P, R]) Definition() any { return h.definition }

func (h *TypedHandler[P, R]) decode(params json.RawMessage) (P, error) {
	var p P
	if len(params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, fmt.Errorf("%w: failed to unmarshal params: %w", ErrValidationFailed, err)
	}
	return p, nil
}
