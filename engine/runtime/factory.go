package runtime

import (
	"fmt"

	"github.com/hookflow/hookflow/pkg/config"
)

// NewBackend selects a concrete Backend by cfg.Runtime.Type (spec.md §6
// RUNTIME_TYPE). The factory is constructed once at startup and passed
// through appstate as an explicitly-wired singleton (spec.md §9), never a
// package-level global.
func NewBackend(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runtime: nil config")
	}
	switch cfg.Runtime.Type {
	case config.RuntimeDocker:
		return NewContainerBackend(cfg)
	case config.RuntimeLambda:
		return NewFunctionBackend(cfg), nil
	case config.RuntimeKubernetes:
		return NewPodBackend(cfg), nil
	default:
		return nil, fmt.Errorf("runtime: unsupported RUNTIME_TYPE %q", cfg.Runtime.Type)
	}
}
