package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastActivityFromLine(t *testing.T) {
	t.Run("Should treat a non-health log line as activity", func(t *testing.T) {
		ts, ok := lastActivityFromLine("2024-01-02T03:04:05.000000000Z POST /execute 200")
		require.True(t, ok)
		assert.Equal(t, 2024, ts.Year())
	})

	t.Run("Should not treat a health probe line as activity", func(t *testing.T) {
		_, ok := lastActivityFromLine("2024-01-02T03:04:05.000000000Z GET /health 200")
		assert.False(t, ok)
	})

	t.Run("Should reject a line without a parseable timestamp", func(t *testing.T) {
		_, ok := lastActivityFromLine("not a timestamped line")
		assert.False(t, ok)
	})
}

func TestPodBackend_PreservesInterface(t *testing.T) {
	t.Run("Should satisfy Backend with no-op semantics", func(t *testing.T) {
		b := NewPodBackend(nil)
		var backend Backend = b
		status, logs, err := backend.CreateRuntime(t.Context(), "rt", Config{})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status)
		assert.Nil(t, logs)
		require.NoError(t, backend.TeardownUnusedRuntimes(t.Context()))
	})
}

func TestFunctionBackend_InvokeTrigger(t *testing.T) {
	t.Run("Should enqueue without error when context is live", func(t *testing.T) {
		b := &FunctionBackend{invokeTimeout: time.Second}
		err := b.InvokeTrigger(t.Context(), "rt", Config{}, InvokePayload{ExecutionID: "exec-1"})
		require.NoError(t, err)
	})
}
