package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zcli/zkernel/backend"
)

const testDefinitions = `
dialogs:
  - id: confirm_delete
    kind: confirm
    message: Delete this record?
    default: false
  - id: confirm_publish
    kind: confirm
    message: Publish now?
    default: true
  - id: maintenance
    message: Scheduled maintenance tonight.
`

func loadedBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(zap.NewNop())
	require.NoError(t, b.Load([]byte(testDefinitions)))
	return b
}

func TestLoadAndNames(t *testing.T) {
	b := loadedBackend(t)
	assert.True(t, b.Has("confirm_delete"))
	assert.False(t, b.Has("ghost"))
	assert.Equal(t, []string{"confirm_delete", "confirm_publish", "maintenance"}, b.Names())
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	err := New(zap.NewNop()).Load([]byte("dialogs:\n  - id: x\n    kind: interrogation\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")

	err = New(zap.NewNop()).Load([]byte("dialogs:\n  - kind: confirm\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestRunConfirmAnswer(t *testing.T) {
	b := loadedBackend(t)

	out, err := b.Run(context.Background(), "confirm_delete", backend.Call{
		Args: map[string]any{"answer": true},
	})
	require.NoError(t, err)
	outcome, ok := out.(Outcome)
	require.True(t, ok)
	assert.True(t, outcome.Confirmed)
	assert.Equal(t, "Delete this record?", outcome.Message)
}

func TestRunConfirmFallsBackToDefault(t *testing.T) {
	b := loadedBackend(t)

	out, err := b.Run(context.Background(), "confirm_delete", backend.Call{})
	require.NoError(t, err)
	assert.False(t, out.(Outcome).Confirmed)

	out, err = b.Run(context.Background(), "confirm_publish", backend.Call{})
	require.NoError(t, err)
	assert.True(t, out.(Outcome).Confirmed)
}

func TestRunConfirmRequiredGate(t *testing.T) {
	b := loadedBackend(t)

	_, err := b.Run(context.Background(), "confirm_delete", backend.Call{Required: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explicit answer required")
}

func TestRunConfirmRejectsNonBoolAnswer(t *testing.T) {
	b := loadedBackend(t)

	_, err := b.Run(context.Background(), "confirm_delete", backend.Call{
		Args: map[string]any{"answer": "yes"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a bool")
}

func TestRunNotice(t *testing.T) {
	b := loadedBackend(t)

	out, err := b.Run(context.Background(), "maintenance", backend.Call{})
	require.NoError(t, err)
	outcome := out.(Outcome)
	assert.Equal(t, "Scheduled maintenance tonight.", outcome.Message)
	assert.False(t, outcome.Confirmed)
}

func TestRunUnknownDialog(t *testing.T) {
	b := loadedBackend(t)
	_, err := b.Run(context.Background(), "ghost", backend.Call{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialog")
}
