package config

import "fmt"

// Service validates a fully-merged Config before it is handed to the rest of
// the process. Kept separate from Manager so tests can validate a
// hand-built Config without going through the provider pipeline.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// Validate rejects a Config with unusable settings. It does not mutate cfg.
func (s *Service) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !cfg.Mode.valid() {
		return fmt.Errorf("invalid mode %q: must be %q or %q", cfg.Mode, ModeStandalone, ModeCloud)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}
	switch cfg.Runtime.Type {
	case RuntimeDocker, RuntimeLambda, RuntimeKubernetes:
	default:
		return fmt.Errorf("invalid runtime type %q", cfg.Runtime.Type)
	}
	if cfg.Workflow.JWTAlgorithm != "HS256" {
		return fmt.Errorf("unsupported workflow JWT algorithm %q", cfg.Workflow.JWTAlgorithm)
	}
	return nil
}
