package runtime

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/pkg/config"
)

// PodBackend targets a pod-orchestrator platform. Pods materialize on
// demand, so creation is a no-op; other operations are stubs that preserve
// the Backend contract (spec.md §4.1: "creation is a no-op... other
// operations are stubs in this spec but must preserve the same interface").
type PodBackend struct{}

// NewPodBackend builds a PodBackend. cfg is accepted for interface symmetry
// with the other constructors even though nothing is read from it yet.
func NewPodBackend(_ *config.Config) *PodBackend {
	return &PodBackend{}
}

func (b *PodBackend) CreateRuntime(_ context.Context, _ core.ID, _ Config) (Status, []LogEntry, error) {
	return StatusCompleted, nil, nil
}

func (b *PodBackend) GetRuntimeStatus(_ context.Context, _ core.ID) (Status, []LogEntry, error) {
	return StatusCompleted, nil, nil
}

func (b *PodBackend) InvokeTrigger(_ context.Context, _ core.ID, _ Config, _ InvokePayload) error {
	return nil
}

func (b *PodBackend) TeardownUnusedRuntimes(_ context.Context) error {
	return nil
}
