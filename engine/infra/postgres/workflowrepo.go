package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/workflow"
	"github.com/jackc/pgx/v5"
)

// WorkflowRepository is the Postgres-backed workflow.Registry.
type WorkflowRepository struct {
	store *Store
}

// NewWorkflowRepository wraps store as a workflow.Registry.
func NewWorkflowRepository(store *Store) *WorkflowRepository {
	return &WorkflowRepository{store: store}
}

var _ workflow.Registry = (*WorkflowRepository)(nil)

type workflowRow struct {
	ID          string    `db:"id"`
	NamespaceID string    `db:"namespace_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r workflowRow) toDomain() *workflow.Workflow {
	return &workflow.Workflow{
		ID:          core.ID(r.ID),
		NamespaceID: core.ID(r.NamespaceID),
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo *WorkflowRepository) Get(ctx context.Context, id core.ID) (*workflow.Workflow, error) {
	sqlStr, args, err := psql.Select("id", "namespace_id", "name", "description", "created_at", "updated_at").
		From("workflows").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-workflow query: %w", err)
	}
	var row workflowRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *WorkflowRepository) GetByName(
	ctx context.Context,
	namespaceID core.ID,
	name string,
) (*workflow.Workflow, error) {
	sqlStr, args, err := psql.Select("id", "namespace_id", "name", "description", "created_at", "updated_at").
		From("workflows").Where(sq.Eq{"namespace_id": namespaceID.String(), "name": name}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-workflow-by-name query: %w", err)
	}
	var row workflowRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("workflow %s/%s: %w", namespaceID, name, ErrNotFound)
		}
		return nil, fmt.Errorf("get workflow by name: %w", err)
	}
	return row.toDomain(), nil
}

type deploymentRow struct {
	ID                 string          `db:"id"`
	WorkflowID         string          `db:"workflow_id"`
	RuntimeID          string          `db:"runtime_id"`
	Files              json.RawMessage `db:"files"`
	Entrypoint         string          `db:"entrypoint"`
	Status             string          `db:"status"`
	TriggerDefinitions json.RawMessage `db:"trigger_definitions"`
	DeployedAt         time.Time       `db:"deployed_at"`
	DeployedBy         string          `db:"deployed_by"`
}

func (r deploymentRow) toDomain() (*workflow.Deployment, error) {
	var files map[string]string
	if err := json.Unmarshal(r.Files, &files); err != nil {
		return nil, fmt.Errorf("decode deployment files: %w", err)
	}
	var defs []workflow.TriggerDefinition
	if len(r.TriggerDefinitions) > 0 {
		if err := json.Unmarshal(r.TriggerDefinitions, &defs); err != nil {
			return nil, fmt.Errorf("decode trigger definitions: %w", err)
		}
	}
	return &workflow.Deployment{
		ID:                 core.ID(r.ID),
		WorkflowID:         core.ID(r.WorkflowID),
		RuntimeID:          core.ID(r.RuntimeID),
		Files:              files,
		Entrypoint:         r.Entrypoint,
		Status:             workflow.DeploymentStatus(r.Status),
		TriggerDefinitions: defs,
		DeployedAt:         r.DeployedAt,
		DeployedBy:         r.DeployedBy,
	}, nil
}

func (repo *WorkflowRepository) LatestActiveDeployment(
	ctx context.Context,
	workflowID core.ID,
) (*workflow.Deployment, error) {
	sqlStr, args, err := psql.Select(
		"id", "workflow_id", "runtime_id", "files", "entrypoint", "status",
		"trigger_definitions", "deployed_at", "deployed_by",
	).From("workflow_deployments").
		Where(sq.Eq{"workflow_id": workflowID.String(), "status": string(workflow.DeploymentActive)}).
		OrderBy("deployed_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest-active-deployment query: %w", err)
	}
	var row deploymentRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest active deployment: %w", err)
	}
	return row.toDomain()
}

func (repo *WorkflowRepository) CreateDeployment(ctx context.Context, d *workflow.Deployment) error {
	if d.ID.IsZero() {
		d.ID = core.MustNewID()
	}
	filesJSON, err := json.Marshal(d.Files)
	if err != nil {
		return fmt.Errorf("marshal deployment files: %w", err)
	}
	defsJSON, err := json.Marshal(d.TriggerDefinitions)
	if err != nil {
		return fmt.Errorf("marshal trigger definitions: %w", err)
	}
	sqlStr, args, err := psql.Insert("workflow_deployments").
		Columns("id", "workflow_id", "runtime_id", "files", "entrypoint", "status", "trigger_definitions").
		Values(d.ID.String(), d.WorkflowID.String(), d.RuntimeID.String(), filesJSON, d.Entrypoint, string(d.Status), defsJSON).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert-deployment query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// ActivateDeployment flips deploymentID to ACTIVE and every sibling
// deployment of the same workflow to INACTIVE inside one transaction,
// preserving the "at most one ACTIVE deployment per workflow" invariant
// (spec.md §3) even under concurrent activations.
func (repo *WorkflowRepository) ActivateDeployment(ctx context.Context, deploymentID core.ID) error {
	tx, err := repo.store.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin activate-deployment tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is a no-op after commit

	var workflowID string
	if err := tx.QueryRow(
		ctx,
		"SELECT workflow_id FROM workflow_deployments WHERE id = $1 FOR UPDATE",
		deploymentID.String(),
	).Scan(&workflowID); err != nil {
		return fmt.Errorf("lock deployment row: %w", err)
	}
	if _, err := tx.Exec(
		ctx,
		"UPDATE workflow_deployments SET status = $1 WHERE workflow_id = $2 AND id <> $3",
		string(workflow.DeploymentInactive), workflowID, deploymentID.String(),
	); err != nil {
		return fmt.Errorf("deactivate sibling deployments: %w", err)
	}
	if _, err := tx.Exec(
		ctx,
		"UPDATE workflow_deployments SET status = $1 WHERE id = $2",
		string(workflow.DeploymentActive), deploymentID.String(),
	); err != nil {
		return fmt.Errorf("activate deployment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit activate-deployment tx: %w", err)
	}
	return nil
}
