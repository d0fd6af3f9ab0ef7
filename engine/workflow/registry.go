package workflow

import (
	"context"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/trigger"
)

// Registry is the durable store contract for workflows and their
// deployments.
type Registry interface {
	Get(ctx context.Context, id core.ID) (*Workflow, error)
	GetByName(ctx context.Context, namespaceID core.ID, name string) (*Workflow, error)

	// LatestActiveDeployment returns the workflow's current ACTIVE
	// deployment, or nil if none (spec.md §4.8 step 2).
	LatestActiveDeployment(ctx context.Context, workflowID core.ID) (*Deployment, error)
	CreateDeployment(ctx context.Context, d *Deployment) error
	// ActivateDeployment marks d active and every other deployment of the
	// same workflow inactive, atomically.
	ActivateDeployment(ctx context.Context, deploymentID core.ID) error
}

// DeployedIdentities returns the identity set materialized by a
// deployment's trigger_definitions snapshot (spec.md §4.5 step 4). A nil
// deployment (no ACTIVE deployment yet) yields an empty set.
func DeployedIdentities(d *Deployment) map[trigger.Identity]struct{} {
	out := make(map[trigger.Identity]struct{})
	if d == nil {
		return out
	}
	for _, td := range d.TriggerDefinitions {
		out[trigger.IdentityOf(td.ProviderType, td.ProviderAlias, td.TriggerType, td.Input)] = struct{}{}
	}
	return out
}
