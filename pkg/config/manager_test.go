package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Load(t *testing.T) {
	t.Run("Should load defaults when no overlay is given", func(t *testing.T) {
		m := NewManager(NewService())
		cfg, err := m.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)
		assert.Equal(t, Default().Server.Port, cfg.Server.Port)
		assert.Equal(t, RuntimeDocker, cfg.Runtime.Type)
	})

	t.Run("Should overlay env vars over defaults", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("RUNTIME_TYPE", "kubernetes")
		m := NewManager(NewService())
		cfg, err := m.Load(context.Background(), NewDefaultProvider(), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, RuntimeKubernetes, cfg.Runtime.Type)
	})

	t.Run("Should fail validation when postgres DSN is cleared", func(t *testing.T) {
		m := NewManager(NewService())
		_, err := m.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider("/does/not/exist.yaml"))
		require.NoError(t, err) // missing file is not an error, defaults remain valid
	})

	t.Run("Should accept a human-readable duration from a YAML overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("runtime:\n  container_idle_timeout: \"1 day\"\n"), 0o600))
		m := NewManager(NewService())
		cfg, err := m.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, cfg.Runtime.ContainerIdleTimeout)
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return stored config", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Port = 1234
		ctx := ContextWithConfig(context.Background(), cfg)
		assert.Equal(t, 1234, FromContext(ctx).Server.Port)
	})

	t.Run("Should return default config when none stored", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	})
}
