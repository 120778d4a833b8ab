package funcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	err := r.Register("echo", func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	})
	require.NoError(t, err)

	assert.True(t, r.Has("echo"))
	assert.False(t, r.Has("missing"))

	args := map[string]any{"k": "v"}
	out, err := r.Invoke(context.Background(), "echo", args)
	require.NoError(t, err)
	assert.Equal(t, args, out)
}

func TestRegistryRejectsDuplicatesAndBadInput(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }

	require.NoError(t, r.Register("f", noop))
	assert.Error(t, r.Register("f", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("g", nil))
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("f", func(context.Context, map[string]any) (any, error) {
		return "old", nil
	}))

	assert.Error(t, r.Replace("missing", func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}))

	require.NoError(t, r.Replace("f", func(context.Context, map[string]any) (any, error) {
		return "new", nil
	}))
	out, err := r.Invoke(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, noop))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistryInvokeUnknown(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	_, err := r.Invoke(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function")
}
