package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Provider loads a layer of configuration into k. Providers are applied in
// the order passed to Manager.Load, later providers overlaying earlier ones.
type Provider interface {
	Load(k *koanf.Koanf) error
}

type providerFunc func(k *koanf.Koanf) error

func (f providerFunc) Load(k *koanf.Koanf) error { return f(k) }

// NewDefaultProvider loads the built-in Default() struct as the base layer.
func NewDefaultProvider() Provider {
	return providerFunc(func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(Default(), "koanf"), nil)
	})
}

// NewYAMLProvider loads path if it exists. A missing file is not an error —
// env vars and defaults alone are a valid configuration.
func NewYAMLProvider(path string) Provider {
	return providerFunc(func(k *koanf.Koanf) error {
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat config file %s: %w", path, err)
		}
		return loadYAMLFile(k, path)
	})
}

// envKoanfPath maps the exact environment variables spec.md §6 enumerates to
// their koanf dotted path. This is an explicit table rather than koanf's
// generic env provider because the spec's env var names (e.g.
// WORKFLOW_JWT_EXPIRATION_SECONDS) don't round-trip through a naive
// underscore-to-dot split onto this struct's snake_case nested fields.
var envKoanfPath = map[string]string{
	"RUNTIME_TYPE":                    "runtime.type",
	"CONTAINER_IDLE_TIMEOUT":          "runtime.container_idle_timeout",
	"CONTAINER_NETWORK":               "runtime.container_network",
	"PUBLIC_API_URL":                  "public_api_url",
	"HOOKFLOW_MODE":                   "mode",
	"WORKFLOW_JWT_SECRET":             "workflow.jwt_secret",
	"WORKFLOW_JWT_ALGORITHM":          "workflow.jwt_algorithm",
	"WORKFLOW_JWT_EXPIRATION_SECONDS": "workflow.jwt_expiration",
	"SECRET_ENCRYPTION_KEY":           "secret.encryption_key",
	"SERVER_HOST":                     "server.host",
	"SERVER_PORT":                     "server.port",
	"POSTGRES_DSN":                    "postgres.dsn",
	"SCHEDULER_TABLE":                 "scheduler.table",
	"SCHEDULER_TIMEZONE":              "scheduler.timezone",
}

// durationPathSuffixes are the koanf paths whose env value is a bare integer
// number of seconds rather than a Go duration string.
var durationPathSuffixes = []string{"_timeout", "_expiration"}

// NewEnvProvider loads the environment variables recognized by spec.md §6.
func NewEnvProvider() Provider {
	return providerFunc(func(k *koanf.Koanf) error {
		for envKey, path := range envKoanfPath {
			raw, ok := os.LookupEnv(envKey)
			if !ok || raw == "" {
				continue
			}
			if isDurationPath(path) {
				if secs, err := time.ParseDuration(raw + "s"); err == nil {
					if err := k.Set(path, secs); err != nil {
						return fmt.Errorf("set %s: %w", path, err)
					}
					continue
				}
			}
			if err := k.Set(path, raw); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
		return nil
	})
}

func isDurationPath(path string) bool {
	for _, suffix := range durationPathSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
