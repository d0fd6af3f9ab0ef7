package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/jackc/pgx/v5"
)

// SchedulerRepository is the Postgres-backed scheduler.Store.
type SchedulerRepository struct {
	store *Store
}

// NewSchedulerRepository wraps store as a scheduler.Store.
func NewSchedulerRepository(store *Store) *SchedulerRepository {
	return &SchedulerRepository{store: store}
}

var _ scheduler.Store = (*SchedulerRepository)(nil)

type schedulerJobRow struct {
	ID              string `db:"id"`
	CronExpression  string `db:"cron_expression"`
	IntervalSeconds int    `db:"interval_seconds"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (repo *SchedulerRepository) UpsertJob(ctx context.Context, job *scheduler.Job) error {
	sqlStr, args, err := psql.Insert("scheduler_jobs").
		Columns("id", "cron_expression", "interval_seconds").
		Values(job.ID, job.Schedule.CronExpression, job.Schedule.IntervalSeconds).
		Suffix(
			"ON CONFLICT (id) DO UPDATE SET cron_expression = EXCLUDED.cron_expression, " +
				"interval_seconds = EXCLUDED.interval_seconds, updated_at = now()",
		).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert-job query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert scheduler job: %w", err)
	}
	return nil
}

func (repo *SchedulerRepository) DeleteJob(ctx context.Context, id string) error {
	sqlStr, args, err := psql.Delete("scheduler_jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete-job query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete scheduler job: %w", err)
	}
	return nil
}

func (repo *SchedulerRepository) ListJobs(ctx context.Context) ([]*scheduler.Job, error) {
	sqlStr, args, err := psql.Select("id", "cron_expression", "interval_seconds", "created_at", "updated_at").
		From("scheduler_jobs").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-jobs query: %w", err)
	}
	var rows []schedulerJobRow
	if err := scanAll(ctx, repo.store.Pool(), &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list scheduler jobs: %w", err)
	}
	out := make([]*scheduler.Job, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (repo *SchedulerRepository) GetJob(ctx context.Context, id string) (*scheduler.Job, error) {
	sqlStr, args, err := psql.Select("id", "cron_expression", "interval_seconds", "created_at", "updated_at").
		From("scheduler_jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get-job query: %w", err)
	}
	var row schedulerJobRow
	if err := scanOne(ctx, repo.store.Pool(), &row, sqlStr, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("scheduler job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get scheduler job: %w", err)
	}
	return row.toDomain(), nil
}

// ClaimRun atomically claims jobID for the caller's replica if no other
// replica currently holds a live claim (spec.md §4.6: the shared store,
// not the in-process mutex alone, is what enforces max_instances=1). The
// UPDATE's WHERE clause is the compare-and-swap: it only matches rows
// whose claim has lapsed or never existed, so concurrent callers racing
// the same row never both get a RowsAffected of 1.
func (repo *SchedulerRepository) ClaimRun(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	lockedUntil := time.Now().UTC().Add(ttl)
	sqlStr, args, err := psql.Update("scheduler_jobs").
		Set("locked_until", lockedUntil).
		Where(sq.Expr("id = ? AND (locked_until IS NULL OR locked_until < now())", jobID)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim-run query: %w", err)
	}
	tag, err := repo.store.Pool().Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("claim scheduler job run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseRun clears jobID's claim so the next tick isn't blocked until ttl
// naturally expires.
func (repo *SchedulerRepository) ReleaseRun(ctx context.Context, jobID string) error {
	sqlStr, args, err := psql.Update("scheduler_jobs").
		Set("locked_until", nil).
		Where(sq.Eq{"id": jobID}).ToSql()
	if err != nil {
		return fmt.Errorf("build release-run query: %w", err)
	}
	if _, err := repo.store.Pool().Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("release scheduler job run: %w", err)
	}
	return nil
}

func (r schedulerJobRow) toDomain() *scheduler.Job {
	return &scheduler.Job{
		ID: r.ID,
		Schedule: scheduler.Schedule{
			CronExpression:  r.CronExpression,
			IntervalSeconds: r.IntervalSeconds,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
