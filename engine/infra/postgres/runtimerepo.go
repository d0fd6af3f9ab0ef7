package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/runtime"
	"github.com/jackc/pgx/v5"
)

// RuntimeRepository is the Postgres-backed runtime.Registry.
type RuntimeRepository struct {
	store *Store
}

// NewRuntimeRepository wraps store as a runtime.Registry.
func NewRuntimeRepository(store *Store) *RuntimeRepository {
	return &RuntimeRepository{store: store}
}

var _ runtime.Registry = (*RuntimeRepository)(nil)

type runtimeRow struct {
	ID         string          `db:"id"`
	ConfigHash string          `db:"config_hash"`
	Config     json.RawMessage `db:"config"`
	Status     string          `db:"status"`
	Logs       json.RawMessage `db:"logs"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (r runtimeRow) toDomain() (*runtime.Runtime, error) {
	var cfg runtime.Config
	if err := json.Unmarshal(r.Config, &cfg); err != nil {
		return nil, fmt.Errorf("decode runtime config: %w", err)
	}
	var logs []runtime.LogEntry
	if len(r.Logs) > 0 {
		if err := json.Unmarshal(r.Logs, &logs); err != nil {
			return nil, fmt.Errorf("decode runtime logs: %w", err)
		}
	}
	return &runtime.Runtime{
		ID:         core.ID(r.ID),
		ConfigHash: r.ConfigHash,
		Config:     cfg,
		Status:     runtime.Status(r.Status),
		Logs:       logs,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func (repo *RuntimeRepository) Get(ctx context.Context, id core.ID) (*runtime.Runtime, error) {
	sqlStr, args, err := psql.Select("id", "config_hash", "config", "status", "logs", "created_at", "updated_at").
		From("runtimes").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-runtime query: %w", err)
	}
	var row runtimeRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("runtime %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get runtime: %w", err)
	}
	return row.toDomain()
}

// Upsert implements the content-addressed "two requests with identical
// config return the same Runtime" invariant (spec.md §3) via an
// ON CONFLICT (config_hash) DO UPDATE that is a no-op except for returning
// the existing row.
func (repo *RuntimeRepository) Upsert(ctx context.Context, cfg runtime.Config) (*runtime.Runtime, error) {
	hash := core.ETagFromAny(cfg)
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal runtime config: %w", err)
	}
	id := core.MustNewID()
	sqlStr, args, err := psql.Insert("runtimes").
		Columns("id", "config_hash", "config", "status", "logs").
		Values(id.String(), hash, cfgJSON, string(runtime.StatusInProgress), "[]").
		Suffix("ON CONFLICT (config_hash) DO UPDATE SET config_hash = EXCLUDED.config_hash " +
			"RETURNING id, config_hash, config, status, logs, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert-runtime query: %w", err)
	}
	var row runtimeRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("upsert runtime: %w", err)
	}
	return row.toDomain()
}

func (repo *RuntimeRepository) UpdateStatus(
	ctx context.Context,
	id core.ID,
	status runtime.Status,
	logs []runtime.LogEntry,
) error {
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal runtime logs: %w", err)
	}
	sqlStr, args, err := psql.Update("runtimes").
		Set("status", string(status)).
		Set("logs", logsJSON).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build update-runtime-status query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update runtime status: %w", err)
	}
	return nil
}
