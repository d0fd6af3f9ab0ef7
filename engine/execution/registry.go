package execution

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
)

// HistoryStore is the durable contract for ExecutionHistory rows
// (spec.md §4.2). The concrete implementation lives in
// engine/infra/postgres.
type HistoryStore interface {
	Create(ctx context.Context, workflowID, triggerID core.ID) (*History, error)
	// MarkStarted must be committed before the runtime is invoked (ordering
	// invariant, spec.md §4.8 step 3).
	MarkStarted(ctx context.Context, executionID, deploymentID core.ID) error
	MarkCompleted(ctx context.Context, executionID core.ID, logs []LogEntry) error
	MarkFailed(ctx context.Context, executionID core.ID, errMessage, stack string, logs []LogEntry) error
	MarkNoDeployment(ctx context.Context, executionID core.ID) error

	Get(ctx context.Context, executionID core.ID) (*History, error)
	List(ctx context.Context, filter ListFilter) ([]*History, error)
}
