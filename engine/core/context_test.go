package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceIDContext(t *testing.T) {
	t.Run("Should round-trip a namespace id through context", func(t *testing.T) {
		id := MustNewID()
		ctx := WithNamespaceID(context.Background(), id)
		got, err := GetNamespaceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("Should error when namespace id is absent", func(t *testing.T) {
		_, err := GetNamespaceID(context.Background())
		require.Error(t, err)
	})
}
