// Package workflow implements the Workflow/WorkflowDeployment data model
// (spec.md §3): the unit of user code, its deployment history, and the
// deployed-trigger-identity snapshot that protects a running deployment
// from dev-mode trigger edits (spec.md §4.5 step 4, §4.8).
package workflow

import (
	"encoding/json"
	"time"

	"github.com/hookflow/hookflow/engine/core"
)

// Workflow is a named, namespace-scoped unit of user code with 0..n
// deployments.
type Workflow struct {
	ID          core.ID   `json:"id"`
	NamespaceID core.ID   `json:"namespace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeploymentStatus is the lifecycle status of a WorkflowDeployment.
type DeploymentStatus string

const (
	DeploymentActive   DeploymentStatus = "ACTIVE"
	DeploymentInactive DeploymentStatus = "INACTIVE"
	DeploymentFailed   DeploymentStatus = "FAILED"
)

// TriggerDefinition is one entry of a deployment's trigger_definitions
// snapshot (spec.md §4.8), used to derive the deployed identity set that
// the Lifecycle Manager must never tear down.
type TriggerDefinition struct {
	ProviderType  string          `json:"provider_type"`
	ProviderAlias string          `json:"provider_alias"`
	TriggerType   string          `json:"trigger_type"`
	Input         json.RawMessage `json:"input"`
}

// Deployment is an immutable (except for Status) snapshot of user code and
// its runtime binding. Invariant: at most one Deployment per workflow has
// Status == DeploymentActive at any moment (spec.md §3).
type Deployment struct {
	ID                 core.ID             `json:"id"`
	WorkflowID         core.ID             `json:"workflow_id"`
	RuntimeID          core.ID             `json:"runtime_id"`
	Files              map[string]string   `json:"files"`
	Entrypoint         string              `json:"entrypoint"`
	Status             DeploymentStatus    `json:"status"`
	TriggerDefinitions []TriggerDefinition `json:"trigger_definitions"`
	DeployedAt         time.Time           `json:"deployed_at"`
	DeployedBy         string              `json:"deployed_by,omitempty"`
}
