package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/jackc/pgx/v5"
)

// ExecutionRepository is the Postgres-backed execution.HistoryStore.
type ExecutionRepository struct {
	store *Store
}

// NewExecutionRepository wraps store as an execution.HistoryStore.
func NewExecutionRepository(store *Store) *ExecutionRepository {
	return &ExecutionRepository{store: store}
}

var _ execution.HistoryStore = (*ExecutionRepository)(nil)

type historyRow struct {
	ID           string          `db:"id"`
	WorkflowID   string          `db:"workflow_id"`
	TriggerID    *string         `db:"trigger_id"`
	DeploymentID *string         `db:"deployment_id"`
	Status       string          `db:"status"`
	ReceivedAt   time.Time       `db:"received_at"`
	StartedAt    *time.Time      `db:"started_at"`
	CompletedAt  *time.Time      `db:"completed_at"`
	ErrorMessage string          `db:"error_message"`
	ErrorStack   string          `db:"error_stack"`
	Logs         json.RawMessage `db:"logs"`
}

func (r historyRow) toDomain() (*execution.History, error) {
	var logs []execution.LogEntry
	if len(r.Logs) > 0 {
		if err := json.Unmarshal(r.Logs, &logs); err != nil {
			return nil, fmt.Errorf("decode history logs: %w", err)
		}
	}
	h := &execution.History{
		ID:           core.ID(r.ID),
		WorkflowID:   core.ID(r.WorkflowID),
		Status:       execution.Status(r.Status),
		ReceivedAt:   r.ReceivedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		ErrorMessage: r.ErrorMessage,
		ErrorStack:   r.ErrorStack,
		Logs:         logs,
	}
	if r.TriggerID != nil {
		h.TriggerID = core.ID(*r.TriggerID)
	}
	if r.DeploymentID != nil {
		id := core.ID(*r.DeploymentID)
		h.DeploymentID = &id
	}
	return h, nil
}

func (repo *ExecutionRepository) Create(
	ctx context.Context,
	workflowID, triggerID core.ID,
) (*execution.History, error) {
	id := core.MustNewID()
	sqlStr, args, err := psql.Insert("execution_history").
		Columns("id", "workflow_id", "trigger_id", "status").
		Values(id.String(), workflowID.String(), triggerID.String(), string(execution.StatusReceived)).
		Suffix("RETURNING id, workflow_id, trigger_id, deployment_id, status, received_at, " +
			"started_at, completed_at, error_message, error_stack, logs").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create-history query: %w", err)
	}
	var row historyRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("create execution history: %w", err)
	}
	return row.toDomain()
}

func (repo *ExecutionRepository) MarkStarted(ctx context.Context, executionID, deploymentID core.ID) error {
	sqlStr, args, err := psql.Update("execution_history").
		Set("status", string(execution.StatusStarted)).
		Set("started_at", sq.Expr("now()")).
		Set("deployment_id", deploymentID.String()).
		Where(sq.Eq{"id": executionID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build mark-started query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark execution started: %w", err)
	}
	return nil
}

func (repo *ExecutionRepository) MarkCompleted(
	ctx context.Context,
	executionID core.ID,
	logs []execution.LogEntry,
) error {
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal completion logs: %w", err)
	}
	sqlStr, args, err := psql.Update("execution_history").
		Set("status", string(execution.StatusCompleted)).
		Set("completed_at", sq.Expr("now()")).
		Set("logs", logsJSON).
		Where(sq.Eq{"id": executionID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build mark-completed query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark execution completed: %w", err)
	}
	return nil
}

func (repo *ExecutionRepository) MarkFailed(
	ctx context.Context,
	executionID core.ID,
	errMessage, stack string,
	logs []execution.LogEntry,
) error {
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal failure logs: %w", err)
	}
	sqlStr, args, err := psql.Update("execution_history").
		Set("status", string(execution.StatusFailed)).
		Set("completed_at", sq.Expr("now()")).
		Set("error_message", errMessage).
		Set("error_stack", stack).
		Set("logs", logsJSON).
		Where(sq.Eq{"id": executionID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build mark-failed query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark execution failed: %w", err)
	}
	return nil
}

func (repo *ExecutionRepository) MarkNoDeployment(ctx context.Context, executionID core.ID) error {
	sqlStr, args, err := psql.Update("execution_history").
		Set("status", string(execution.StatusNoDeployment)).
		Set("completed_at", sq.Expr("now()")).
		Where(sq.Eq{"id": executionID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build mark-no-deployment query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark execution no-deployment: %w", err)
	}
	return nil
}

func (repo *ExecutionRepository) Get(ctx context.Context, executionID core.ID) (*execution.History, error) {
	sqlStr, args, err := psql.Select(
		"id", "workflow_id", "trigger_id", "deployment_id", "status", "received_at",
		"started_at", "completed_at", "error_message", "error_stack", "logs",
	).From("execution_history").Where(sq.Eq{"id": executionID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-history query: %w", err)
	}
	var row historyRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
		}
		return nil, fmt.Errorf("get execution history: %w", err)
	}
	return row.toDomain()
}

func (repo *ExecutionRepository) List(
	ctx context.Context,
	filter execution.ListFilter,
) ([]*execution.History, error) {
	q := psql.Select(
		"id", "workflow_id", "trigger_id", "deployment_id", "status", "received_at",
		"started_at", "completed_at", "error_message", "error_stack", "logs",
	).From("execution_history").OrderBy("received_at DESC")
	if filter.WorkflowID != nil {
		q = q.Where(sq.Eq{"workflow_id": filter.WorkflowID.String()})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	q = q.Limit(uint64(limit)).Offset(uint64(filter.Offset))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-history query: %w", err)
	}
	var rows []historyRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list execution history: %w", err)
	}
	out := make([]*execution.History, len(rows))
	for i, row := range rows {
		h, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
