package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("Should resolve every declared Kind to a distinct adapter", func(t *testing.T) {
		kinds := []Kind{
			KindGitLab, KindSlack, KindDiscord, KindGitHub,
			KindJira, KindGoogleCalendar, KindBuiltin, KindKVStore,
		}
		for _, k := range kinds {
			adapter, err := Resolve(k)
			require.NoError(t, err, "kind %s", k)
			assert.Equal(t, k, adapter.Kind())
		}
	})

	t.Run("Should error for an unregistered kind", func(t *testing.T) {
		_, err := Resolve(Kind("not-a-real-kind"))
		assert.Error(t, err)
	})
}

func TestValid(t *testing.T) {
	t.Run("Should report true for a known kind", func(t *testing.T) {
		assert.True(t, Valid(KindGitHub))
	})

	t.Run("Should report false for an unknown kind", func(t *testing.T) {
		assert.False(t, Valid(Kind("nope")))
	})
}
