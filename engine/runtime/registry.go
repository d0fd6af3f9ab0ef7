package runtime

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
)

// Registry is the durable, content-addressed store for Runtime rows
// (spec.md §3): two requests with identical Config return the same
// Runtime.
type Registry interface {
	Get(ctx context.Context, id core.ID) (*Runtime, error)
	// Upsert returns the existing Runtime for cfg's content hash, or
	// creates one if none exists yet.
	Upsert(ctx context.Context, cfg Config) (*Runtime, error)
	UpdateStatus(ctx context.Context, id core.ID, status Status, logs []LogEntry) error
}
