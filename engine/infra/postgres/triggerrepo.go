package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/jackc/pgx/v5"
)

// TriggerRepository is the Postgres-backed trigger.Registry.
type TriggerRepository struct {
	store *Store
}

// NewTriggerRepository wraps store as a trigger.Registry.
func NewTriggerRepository(store *Store) *TriggerRepository {
	return &TriggerRepository{store: store}
}

var _ trigger.Registry = (*TriggerRepository)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type triggerRow struct {
	ID            string          `db:"id"`
	WorkflowID    string          `db:"workflow_id"`
	NamespaceID   string          `db:"namespace_id"`
	ProviderType  string          `db:"provider_type"`
	ProviderAlias string          `db:"provider_alias"`
	TriggerType   string          `db:"trigger_type"`
	Input         json.RawMessage `db:"input"`
	InputSchema   json.RawMessage `db:"input_schema"`
	State         []byte          `db:"state"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r triggerRow) toDomain() *trigger.Trigger {
	return &trigger.Trigger{
		ID:            core.ID(r.ID),
		WorkflowID:    core.ID(r.WorkflowID),
		NamespaceID:   core.ID(r.NamespaceID),
		ProviderType:  r.ProviderType,
		ProviderAlias: r.ProviderAlias,
		TriggerType:   r.TriggerType,
		Input:         r.Input,
		InputSchema:   r.InputSchema,
		State:         r.State,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (repo *TriggerRepository) ListByWorkflow(ctx context.Context, workflowID core.ID) ([]*trigger.Trigger, error) {
	sql, args, err := psql.Select(
		"id", "workflow_id", "namespace_id", "provider_type", "provider_alias",
		"trigger_type", "input", "input_schema", "state", "created_at", "updated_at",
	).From("triggers").Where(sq.Eq{"workflow_id": workflowID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-by-workflow query: %w", err)
	}
	var rows []triggerRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list triggers by workflow: %w", err)
	}
	return toDomainSlice(rows), nil
}

func (repo *TriggerRepository) ListByProvider(
	ctx context.Context,
	providerType, providerAlias string,
	namespaceID core.ID,
) ([]*trigger.Trigger, error) {
	sql, args, err := psql.Select(
		"id", "workflow_id", "namespace_id", "provider_type", "provider_alias",
		"trigger_type", "input", "input_schema", "state", "created_at", "updated_at",
	).From("triggers").Where(sq.Eq{
		"provider_type":  providerType,
		"provider_alias": providerAlias,
		"namespace_id":   namespaceID.String(),
	}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-by-provider query: %w", err)
	}
	var rows []triggerRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list triggers by provider: %w", err)
	}
	return toDomainSlice(rows), nil
}

func (repo *TriggerRepository) Get(ctx context.Context, id core.ID) (*trigger.Trigger, error) {
	sql, args, err := psql.Select(
		"id", "workflow_id", "namespace_id", "provider_type", "provider_alias",
		"trigger_type", "input", "input_schema", "state", "created_at", "updated_at",
	).From("triggers").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-trigger query: %w", err)
	}
	var row triggerRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trigger %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *TriggerRepository) Create(ctx context.Context, t *trigger.Trigger) error {
	if t.ID.IsZero() {
		t.ID = core.MustNewID()
	}
	sql, args, err := psql.Insert("triggers").Columns(
		"id", "workflow_id", "namespace_id", "provider_type", "provider_alias",
		"trigger_type", "input", "input_schema", "state",
	).Values(
		t.ID.String(), t.WorkflowID.String(), t.NamespaceID.String(),
		t.ProviderType, t.ProviderAlias, t.TriggerType, []byte(t.Input), nullableRawMessage(t.InputSchema), t.State,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert-trigger query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (repo *TriggerRepository) UpdateState(ctx context.Context, id core.ID, state []byte) error {
	sql, args, err := psql.Update("triggers").
		Set("state", state).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build update-state query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update trigger state: %w", err)
	}
	return nil
}

func (repo *TriggerRepository) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := psql.Delete("triggers").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete-trigger query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}

type webhookRow struct {
	ID         string    `db:"id"`
	Path       string    `db:"path"`
	Method     string    `db:"method"`
	Owner      string    `db:"owner"`
	TriggerID  *string   `db:"trigger_id"`
	ProviderID *string   `db:"provider_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r webhookRow) toDomain() *trigger.IncomingWebhook {
	w := &trigger.IncomingWebhook{
		ID:        core.ID(r.ID),
		Path:      r.Path,
		Method:    r.Method,
		Owner:     trigger.WebhookOwner(r.Owner),
		CreatedAt: r.CreatedAt,
	}
	if r.TriggerID != nil {
		id := core.ID(*r.TriggerID)
		w.TriggerID = &id
	}
	if r.ProviderID != nil {
		id := core.ID(*r.ProviderID)
		w.ProviderID = &id
	}
	return w
}

func (repo *TriggerRepository) FindWebhookByPath(ctx context.Context, path string) (*trigger.IncomingWebhook, error) {
	sql, args, err := psql.Select("id", "path", "method", "owner", "trigger_id", "provider_id", "created_at").
		From("incoming_webhooks").Where(sq.Eq{"path": path}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find-webhook query: %w", err)
	}
	var row webhookRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("webhook path %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("find webhook by path: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *TriggerRepository) FindProviderWebhook(
	ctx context.Context,
	providerID core.ID,
) (*trigger.IncomingWebhook, error) {
	sql, args, err := psql.Select("id", "path", "method", "owner", "trigger_id", "provider_id", "created_at").
		From("incoming_webhooks").
		Where(sq.Eq{"provider_id": providerID.String(), "owner": trigger.WebhookOwnerProvider}).
		Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find-provider-webhook query: %w", err)
	}
	var row webhookRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("provider webhook %s: %w", providerID, ErrNotFound)
		}
		return nil, fmt.Errorf("find provider webhook: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *TriggerRepository) FindWebhookByTrigger(
	ctx context.Context,
	triggerID core.ID,
) (*trigger.IncomingWebhook, error) {
	sql, args, err := psql.Select("id", "path", "method", "owner", "trigger_id", "provider_id", "created_at").
		From("incoming_webhooks").
		Where(sq.Eq{"trigger_id": triggerID.String(), "owner": trigger.WebhookOwnerTrigger}).
		Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find-trigger-webhook query: %w", err)
	}
	var row webhookRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trigger webhook %s: %w", triggerID, ErrNotFound)
		}
		return nil, fmt.Errorf("find trigger webhook: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *TriggerRepository) CreateWebhook(ctx context.Context, w *trigger.IncomingWebhook) error {
	if w.ID.IsZero() {
		w.ID = core.MustNewID()
	}
	var triggerID, providerID *string
	if w.TriggerID != nil {
		s := w.TriggerID.String()
		triggerID = &s
	}
	if w.ProviderID != nil {
		s := w.ProviderID.String()
		providerID = &s
	}
	sql, args, err := psql.Insert("incoming_webhooks").
		Columns("id", "path", "method", "owner", "trigger_id", "provider_id").
		Values(w.ID.String(), w.Path, w.Method, string(w.Owner), triggerID, providerID).ToSql()
	if err != nil {
		return fmt.Errorf("build insert-webhook query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

type recurringTaskRow struct {
	ID        string    `db:"id"`
	TriggerID string    `db:"trigger_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r recurringTaskRow) toDomain() *trigger.RecurringTask {
	return &trigger.RecurringTask{
		ID:        core.ID(r.ID),
		TriggerID: core.ID(r.TriggerID),
		CreatedAt: r.CreatedAt,
	}
}

func (repo *TriggerRepository) CreateRecurringTask(ctx context.Context, rt *trigger.RecurringTask) error {
	if rt.ID.IsZero() {
		rt.ID = core.MustNewID()
	}
	sql, args, err := psql.Insert("recurring_tasks").
		Columns("id", "trigger_id").
		Values(rt.ID.String(), rt.TriggerID.String()).ToSql()
	if err != nil {
		return fmt.Errorf("build insert-recurring-task query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recurring task: %w", err)
	}
	return nil
}

func (repo *TriggerRepository) DeleteRecurringTask(ctx context.Context, triggerID core.ID) error {
	sql, args, err := psql.Delete("recurring_tasks").Where(sq.Eq{"trigger_id": triggerID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete-recurring-task query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete recurring task: %w", err)
	}
	return nil
}

func (repo *TriggerRepository) ListRecurringTasks(ctx context.Context) ([]*trigger.RecurringTask, error) {
	sql, args, err := psql.Select("id", "trigger_id", "created_at").From("recurring_tasks").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-recurring-tasks query: %w", err)
	}
	var rows []recurringTaskRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list recurring tasks: %w", err)
	}
	out := make([]*trigger.RecurringTask, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (repo *TriggerRepository) FindRecurringTaskByTrigger(
	ctx context.Context,
	triggerID core.ID,
) (*trigger.RecurringTask, error) {
	sql, args, err := psql.Select("id", "trigger_id", "created_at").
		From("recurring_tasks").Where(sq.Eq{"trigger_id": triggerID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find-recurring-task query: %w", err)
	}
	var row recurringTaskRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recurring task for trigger %s: %w", triggerID, ErrNotFound)
		}
		return nil, fmt.Errorf("find recurring task by trigger: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *TriggerRepository) FindTriggerByScheduleID(
	ctx context.Context,
	recurringTaskID core.ID,
) (*trigger.Trigger, error) {
	sql, args, err := psql.Select(
		"t.id", "t.workflow_id", "t.namespace_id", "t.provider_type", "t.provider_alias",
		"t.trigger_type", "t.input", "t.input_schema", "t.state", "t.created_at", "t.updated_at",
	).From("triggers t").
		Join("recurring_tasks rt ON rt.trigger_id = t.id").
		Where(sq.Eq{"rt.id": recurringTaskID.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find-by-schedule query: %w", err)
	}
	var row triggerRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recurring task %s: %w", recurringTaskID, ErrNotFound)
		}
		return nil, fmt.Errorf("find trigger by schedule id: %w", err)
	}
	return row.toDomain(), nil
}

// nullableRawMessage converts an empty schema into a SQL NULL rather than
// writing an empty-but-non-null JSONB value.
func nullableRawMessage(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func toDomainSlice(rows []triggerRow) []*trigger.Trigger {
	out := make([]*trigger.Trigger, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}
