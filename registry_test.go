package mcpwire_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/relaywire/mcpwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(tag string) mcpwire.HandlerFunc {
	return func(context.Context, mcpwire.RequestContext, json.RawMessage) (any, error) {
		return tag, nil
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := mcpwire.NewRegistry()
	reg.Register("tools/call", echoHandler("a"))

	entry, ok := reg.Lookup("tools/call")
	require.True(t, ok)
	assert.Equal(t, "tools/call", entry.Method)

	_, ok = reg.Lookup("tools/missing")
	assert.False(t, ok)
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := mcpwire.NewRegistry()
	reg.Register("tools/call", echoHandler("first"))
	reg.Register("tools/call", echoHandler("second"))

	entry, ok := reg.Lookup("tools/call")
	require.True(t, ok)

	res, err := entry.Handler.Handle(context.Background(), mcpwire.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res)
}

func TestRegistryExplicitRolesOverrideHandlerRoles(t *testing.T) {
	h := mcpwire.NewHandler(
		func(context.Context, mcpwire.RequestContext, struct{}) (struct{}, error) {
			return struct{}{}, nil
		}).WithAllowedRoles("admin")

	reg := mcpwire.NewRegistry()
	reg.Register("secure/op", h, "operator")

	entry, ok := reg.Lookup("secure/op")
	require.True(t, ok)
	assert.Equal(t, []string{"operator"}, entry.AllowedRoles)
}

func TestRegistryRolesFromHandler(t *testing.T) {
	h := mcpwire.NewHandler(
		func(context.Context, mcpwire.RequestContext, struct{}) (struct{}, error) {
			return struct{}{}, nil
		}).WithAllowedRoles("admin")

	reg := mcpwire.NewRegistry()
	reg.Register("secure/op", h)

	entry, ok := reg.Lookup("secure/op")
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, entry.AllowedRoles)
}

func TestRegistryMethods(t *testing.T) {
	reg := mcpwire.NewRegistry()
	reg.Register("a", echoHandler("a"))
	reg.Register("b", echoHandler("b"))

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Methods())
}

func TestRequestContextHasAnyRole(t *testing.T) {
	rc := mcpwire.RequestContext{Roles: []string{"guest"}}

	assert.True(t, rc.HasAnyRole(nil))
	assert.True(t, rc.HasAnyRole([]string{"guest", "admin"}))
	assert.False(t, rc.HasAnyRole([]string{"admin"}))

	empty := mcpwire.RequestContext{}
	assert.True(t, empty.HasAnyRole(nil))
	assert.False(t, empty.HasAnyRole([]string{"admin"}))
}
