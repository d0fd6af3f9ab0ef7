package config

import "context"

type ctxKey struct{}

var configCtxKey = ctxKey{}

// ContextWithConfig returns a new context carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configCtxKey, cfg)
}

// FromContext returns the Config stored in ctx, or Default() if none was
// stored. Never returns nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return Default()
	}
	cfg, ok := ctx.Value(configCtxKey).(*Config)
	if !ok || cfg == nil {
		return Default()
	}
	return cfg
}
