package device

import (
	"errors"
	"testing"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/backend/memio"
	"github.com/stretchr/testify/require"
)

func TestNewContextSelectsFirstSucceedingBackend(t *testing.T) {
	failing := memio.New(memio.Config{Name: "failing", FailContextInit: true})
	working := memio.New(memio.Config{Name: "memio"})

	ctx, err := NewContext(ContextConfig{Backends: []backend.VTable{failing, working}})
	require.NoError(t, err)
	require.Equal(t, "memio", ctx.BackendName())
}

func TestNewContextReturnsErrNoBackendWhenAllFail(t *testing.T) {
	vt := memio.New(memio.Config{FailContextInit: true})
	_, err := NewContext(ContextConfig{Backends: []backend.VTable{vt}})
	require.Error(t, err)
}

func TestNewContextRequiresAtLeastOneBackend(t *testing.T) {
	_, err := NewContext(ContextConfig{})
	require.Error(t, err)
}

func TestContextEnumerateDevices(t *testing.T) {
	ctx, err := NewContext(ContextConfig{Backends: []backend.VTable{memio.New(memio.Config{})}})
	require.NoError(t, err)

	var seen int
	err = ctx.EnumerateDevices(backend.RolePlayback, func(di backend.DeviceInfo) error {
		seen++
		require.Equal(t, backend.RolePlayback, di.Role)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, seen)
}

func TestContextEnumerateDevicesPropagatesCallbackError(t *testing.T) {
	ctx, err := NewContext(ContextConfig{Backends: []backend.VTable{memio.New(memio.Config{})}})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = ctx.EnumerateDevices(backend.RolePlayback, func(backend.DeviceInfo) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
