package mcpwire_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaywire/mcpwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetParams struct {
	Name string `json:"name"`
}

type greetResult struct {
	Greeting string `json:"greeting"`
}

func TestTypedHandlerDecodesParams(t *testing.T) {
	h := mcpwire.NewHandler(
		func(_ context.Context, _ mcpwire.RequestContext, p greetParams) (greetResult, error) {
			return greetResult{Greeting: "hello " + p.Name}, nil
		})

	res, err := h.Handle(context.Background(), mcpwire.RequestContext{}, json.RawMessage(`{"name":"world"}`))
	require.NoError(t, err)
	assert.Equal(t, greetResult{Greeting: "hello world"}, res)
}

func TestTypedHandlerNilParams(t *testing.T) {
	h := mcpwire.NewHandler(
		func(_ context.Context, _ mcpwire.RequestContext, p greetParams) (greetResult, error) {
			return greetResult{Greeting: "hello " + p.Name}, nil
		})

	res, err := h.Handle(context.Background(), mcpwire.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, greetResult{Greeting: "hello "}, res)
}

func TestTypedHandlerMalformedParams(t *testing.T) {
	h := mcpwire.NewHandler(
		func(_ context.Context, _ mcpwire.RequestContext, p greetParams) (greetResult, error) {
			return greetResult{}, nil
		})

	_, err := h.Handle(context.Background(), mcpwire.RequestContext{}, json.RawMessage(`{"name":7}`))
	assert.ErrorIs(t, err, mcpwire.ErrValidationFailed)
}

func TestTypedHandlerValidate(t *testing.T) {
	h := mcpwire.NewHandler(
		func(_ context.Context, _ mcpwire.RequestContext, p greetParams) (greetResult, error) {
			return greetResult{}, nil
		}).WithValidate(func(p greetParams) error {
		if p.Name == "" {
			return errors.New("name is required")
		}
		return nil
	})

	err := h.Validate(json.RawMessage(`{"name":""}`))
	assert.ErrorIs(t, err, mcpwire.ErrValidationFailed)

	assert.NoError(t, h.Validate(json.RawMessage(`{"name":"ok"}`)))
}

func TestTypedHandlerMetadata(t *testing.T) {
	def := mcpwire.Tool{Name: "greet"}
	h := mcpwire.NewHandler(
		func(_ context.Context, _ mcpwire.RequestContext, p greetParams) (greetResult, error) {
			return greetResult{}, nil
		}).
		WithAllowedRoles("admin", "operator").
		WithDefinition(def)

	assert.Equal(t, []string{"admin", "operator"}, h.AllowedRoles())
	assert.Equal(t, def, h.Definition())
}
