package mcpwire

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed wrappers over Call for the responder-initiated methods. They all
// share the correlation machinery: a fresh id, a pending entry, and a reply
// matched by the correlator.

// Ping checks the peer's liveness.
func (r *Router) Ping(ctx context.Context) error {
	_, err := r.Call(ctx, MethodPing, nil, 0)
	return err
}

// ListRoots asks the peer for its root directories.
func (r *Router) ListRoots(ctx context.Context) (ListRootsResult, error) {
	raw, err := r.Call(ctx, MethodRootsList, nil, 0)
	if err != nil {
		return ListRootsResult{}, err
	}
	var result ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ListRootsResult{}, fmt.Errorf("failed to unmarshal roots list result: %w", err)
	}
	return result, nil
}

// CreateSamplingMessage asks the peer to sample a message from a model.
func (r *Router) CreateSamplingMessage(ctx context.Context, params SamplingParams) (SamplingResult, error) {
	raw, err := r.Call(ctx, MethodSamplingCreateMessage, params, 0)
	if err != nil {
		return SamplingResult{}, err
	}
	var result SamplingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return SamplingResult{}, fmt.Errorf("failed to unmarshal sampling result: %w", err)
	}
	return result, nil
}

// Elicit asks the peer to collect structured input from its user.
func (r *Router) Elicit(ctx context.Context, params ElicitParams) (ElicitResult, error) {
	raw, err := r.Call(ctx, MethodElicitationCreate, params, 0)
	if err != nil {
		return ElicitResult{}, err
	}
	var result ElicitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ElicitResult{}, fmt.Errorf("failed to unmarshal elicitation result: %w", err)
	}
	return result, nil
}
