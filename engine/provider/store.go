package provider

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
)

// Registry is the durable store contract for Provider rows.
type Registry interface {
	Get(ctx context.Context, namespaceID core.ID, kind Kind, alias string) (*Provider, error)
	// GetByID loads a provider by its own id, for callers that only have an
	// IncomingWebhook.ProviderID to resolve (spec.md §4.7 step 3).
	GetByID(ctx context.Context, id core.ID) (*Provider, error)
	Create(ctx context.Context, p *Provider) error
	ListByNamespace(ctx context.Context, namespaceID core.ID) ([]*Provider, error)
}
