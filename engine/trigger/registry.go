package trigger

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
)

// Registry is the durable store contract for triggers and their routing
// rows (spec.md §4.3). The concrete implementation lives in
// engine/infra/postgres, following the teacher's convention of keeping
// storage-backed repositories in one infra package per backing store.
type Registry interface {
	ListByWorkflow(ctx context.Context, workflowID core.ID) ([]*Trigger, error)
	ListByProvider(ctx context.Context, providerType, providerAlias string, namespaceID core.ID) ([]*Trigger, error)
	Get(ctx context.Context, id core.ID) (*Trigger, error)

	// Create inserts t and returns its assigned ID.
	Create(ctx context.Context, t *Trigger) error
	// UpdateState persists the (opaque, already-encrypted) state for id.
	UpdateState(ctx context.Context, id core.ID, state []byte) error
	Delete(ctx context.Context, id core.ID) error

	FindWebhookByPath(ctx context.Context, path string) (*IncomingWebhook, error)
	CreateWebhook(ctx context.Context, w *IncomingWebhook) error
	FindProviderWebhook(ctx context.Context, providerID core.ID) (*IncomingWebhook, error)
	FindWebhookByTrigger(ctx context.Context, triggerID core.ID) (*IncomingWebhook, error)

	CreateRecurringTask(ctx context.Context, rt *RecurringTask) error
	DeleteRecurringTask(ctx context.Context, triggerID core.ID) error
	ListRecurringTasks(ctx context.Context) ([]*RecurringTask, error)
	FindRecurringTaskByTrigger(ctx context.Context, triggerID core.ID) (*RecurringTask, error)
	FindTriggerByScheduleID(ctx context.Context, recurringTaskID core.ID) (*Trigger, error)
}
