package mcpwire

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the routing layer. Every terminal error maps to a
// JSON-RPC error object with a stable code via toJSONRPCError.
var (
	// ErrMethodNotFound indicates no handler is registered for the method.
	ErrMethodNotFound = errors.New("method not found")

	// ErrUnauthorized indicates the caller's roles do not satisfy the
	// handler's allowed roles. The handler is never invoked.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidationFailed indicates the request or response failed shape
	// validation. The handler is never invoked, or its result is discarded.
	ErrValidationFailed = errors.New("validation failed")

	// ErrCircuitOpen indicates the endpoint's circuit breaker is open and
	// the call failed fast without invoking the operation. Not retried.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrTimeout indicates either admission timed out or a pending request's
	// deadline expired before a response arrived.
	ErrTimeout = errors.New("timeout")

	// ErrServerBusy indicates admission control rejected the request because
	// all concurrency permits were taken.
	ErrServerBusy = errors.New("server busy")

	// ErrDuplicateID indicates an outbound request id collided with one
	// already outstanding. This is a protocol violation.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrBidirectionalDisabled indicates a peer request was attempted while
	// bidirectional mode is off.
	ErrBidirectionalDisabled = errors.New("bidirectional requests disabled")
)

// JSON-RPC server-error codes used for the routing taxonomy. The standard
// codes (parse, invalid request, method not found, invalid params, internal)
// come from schema.go; these fill the implementation-defined -32000..-32099
// range.
const (
	jsonRPCUnauthorizedCode = -32001
	jsonRPCCircuitOpenCode  = -32002
	jsonRPCTimeoutCode      = -32003
	jsonRPCServerBusyCode   = -32004
)

// HandlerError wraps a business-logic failure surfaced by a handler.
// Transient marks the failure as retryable by the retry policy.
type HandlerError struct {
	Err       error
	Transient bool
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error: %s", e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// TransportError wraps a failure reported by the transport collaborator.
// Transport failures are classified transient by default.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransientError marks err as retryable without any other semantics.
func TransientError(err error) error {
	return &HandlerError{Err: err, Transient: true}
}

// isTransient reports whether the retry policy may re-attempt the operation.
// Only transport failures and handler errors explicitly flagged transient
// qualify; caller errors, breaker rejections and timeouts are terminal.
func isTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Transient
	}
	return false
}

// toJSONRPCError maps a routing-layer error to the JSON-RPC error object sent
// back to the peer. Unknown errors map to the internal error code.
func toJSONRPCError(err error) *JSONRPCError {
	var jErr JSONRPCError
	if errors.As(err, &jErr) {
		return &jErr
	}

	code := jsonRPCInternalErrorCode
	switch {
	case errors.Is(err, ErrMethodNotFound):
		code = jsonRPCMethodNotFoundCode
	case errors.Is(err, ErrValidationFailed):
		code = jsonRPCInvalidParamsCode
	case errors.Is(err, ErrUnauthorized):
		code = jsonRPCUnauthorizedCode
	case errors.Is(err, ErrCircuitOpen):
		code = jsonRPCCircuitOpenCode
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = jsonRPCTimeoutCode
	case errors.Is(err, ErrServerBusy):
		code = jsonRPCServerBusyCode
	case errors.Is(err, ErrDuplicateID):
		code = jsonRPCInvalidRequestCode
	}

	return &JSONRPCError{
		Code:    code,
		Message: err.Error(),
	}
}

// errorFromResponse converts a peer's JSON-RPC error object back into the
// routing taxonomy so callers can branch on sentinel errors.
func errorFromResponse(jErr *JSONRPCError) error {
	switch jErr.Code {
	case jsonRPCMethodNotFoundCode:
		return fmt.Errorf("%w: %s", ErrMethodNotFound, jErr.Message)
	case jsonRPCUnauthorizedCode:
		return fmt.Errorf("%w: %s", ErrUnauthorized, jErr.Message)
	case jsonRPCTimeoutCode:
		return fmt.Errorf("%w: %s", ErrTimeout, jErr.Message)
	case jsonRPCCircuitOpenCode:
		return fmt.Errorf("%w: %s", ErrCircuitOpen, jErr.Message)
	}
	return *jErr
}
