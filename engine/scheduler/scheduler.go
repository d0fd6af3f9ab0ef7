// Package scheduler implements the durable job store (spec.md §4.6, C6):
// cron/interval dispatch for RecurringTasks with single-fire-across-
// replicas semantics (max_instances=1, coalesce, misfire_grace_time).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// RecurringTaskJobPrefix is the scheduler job id prefix for jobs backed by
// a trigger.RecurringTask row (spec.md §3).
const RecurringTaskJobPrefix = "recurring_task_"

const defaultMisfireGrace = 30 * time.Second

// defaultClaimTTL bounds how long one replica's claim on a job run holds
// the distributed lock before it's considered abandoned and up for grabs
// again (a crashed replica must not deadlock the job forever).
const defaultClaimTTL = 5 * time.Minute

// Schedule is either a UTC cron expression or a fixed interval in seconds.
type Schedule struct {
	CronExpression  string
	IntervalSeconds int
}

func (s Schedule) spec() (string, error) {
	if s.CronExpression != "" {
		return s.CronExpression, nil
	}
	if s.IntervalSeconds > 0 {
		return fmt.Sprintf("@every %ds", s.IntervalSeconds), nil
	}
	return "", fmt.Errorf("scheduler: schedule has neither a cron expression nor an interval")
}

// Job is a durable row describing one scheduled callback.
type Job struct {
	ID        string
	Schedule  Schedule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the durable backing store for Job rows, shared across process
// replicas so a restart resumes the same schedule.
type Store interface {
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context) ([]*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)

	// ClaimRun atomically claims the exclusive right to run jobID for up to
	// ttl, enforcing max_instances=1 across every replica sharing this
	// store (spec.md §4.6, Testable Property 5): only one replica's claim
	// succeeds per tick. A claim that is never released (a crashed
	// replica) expires after ttl, so the job is never deadlocked.
	ClaimRun(ctx context.Context, jobID string, ttl time.Duration) (claimed bool, err error)
	// ReleaseRun clears jobID's claim as soon as its run completes, so the
	// next tick doesn't sit blocked until ttl naturally lapses.
	ReleaseRun(ctx context.Context, jobID string) error
}

// ExecuteFunc is invoked when a job fires. It receives the job id so the
// caller (engine/execution wiring) can resolve the underlying trigger.
type ExecuteFunc func(ctx context.Context, jobID string)

// Scheduler wraps robfig/cron/v3 with the durable Store and the
// single-fire semantics spec.md §4.6 requires.
type Scheduler struct {
	cron         *cron.Cron
	store        Store
	execute      ExecuteFunc
	misfireGrace time.Duration
	claimTTL     time.Duration

	mu        sync.Mutex
	entries   map[string]cron.EntryID
	running   map[string]*int32
	onMisfire func()
}

// SetMisfireHook installs a callback invoked every time wrap drops a run for
// missing its misfire_grace_time window (engine/infra/monitoring wires this
// to a Prometheus counter; nil is a safe no-op default).
func (s *Scheduler) SetMisfireHook(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMisfire = hook
}

// New builds a Scheduler. All cron schedules are interpreted in UTC.
func New(store Store, execute ExecuteFunc) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		store:        store,
		execute:      execute,
		misfireGrace: defaultMisfireGrace,
		claimTTL:     defaultClaimTTL,
		entries:      make(map[string]cron.EntryID),
		running:      make(map[string]*int32),
	}
}

// Start begins dispatching. Safe to call once.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks running jobs from starting new runs and returns a context
// canceled once in-flight jobs drain.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// AddJob registers or replaces jobID's schedule (replaceExisting = true
// per spec.md §4.6).
func (s *Scheduler) AddJob(ctx context.Context, jobID string, sched Schedule) error {
	spec, err := sched.spec()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if existing, ok := s.entries[jobID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, jobID)
	}
	s.mu.Unlock()

	entryID, err := s.cron.AddFunc(spec, s.wrap(jobID))
	if err != nil {
		return fmt.Errorf("scheduler: add job %s: %w", jobID, err)
	}
	s.mu.Lock()
	s.entries[jobID] = entryID
	s.mu.Unlock()

	if err := s.store.UpsertJob(ctx, &Job{ID: jobID, Schedule: sched}); err != nil {
		return fmt.Errorf("scheduler: persist job %s: %w", jobID, err)
	}
	return nil
}

// RemoveJob unregisters jobID from both the in-process cron and the store.
func (s *Scheduler) RemoveJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	if entryID, ok := s.entries[jobID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
	}
	delete(s.running, jobID)
	s.mu.Unlock()
	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("scheduler: delete job %s: %w", jobID, err)
	}
	return nil
}

// RescheduleJob replaces jobID's schedule.
func (s *Scheduler) RescheduleJob(ctx context.Context, jobID string, sched Schedule) error {
	return s.AddJob(ctx, jobID, sched)
}

// ListJobs returns every durable job row.
func (s *Scheduler) ListJobs(ctx context.Context) ([]*Job, error) { return s.store.ListJobs(ctx) }

// GetJob returns one durable job row.
func (s *Scheduler) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// wrap enforces max_instances=1 both in-process (skip if a prior run of
// this job is still executing locally — the coalesce behavior: a skipped
// tick is never queued for replay) and across replicas (the Store's
// ClaimRun, which is what actually makes max_instances=1 hold when N
// processes share one durable job store, spec.md §4.6 Testable Property 5),
// and misfire_grace_time (drop a run if the wrapped callback wasn't
// scheduled to start within the grace window).
func (s *Scheduler) wrap(jobID string) func() {
	return func() {
		scheduledAt := time.Now().UTC()
		s.mu.Lock()
		running, ok := s.running[jobID]
		if !ok {
			var v int32
			running = &v
			s.running[jobID] = running
		}
		s.mu.Unlock()

		if !atomic.CompareAndSwapInt32(running, 0, 1) {
			return
		}
		defer atomic.StoreInt32(running, 0)

		if time.Since(scheduledAt) > s.misfireGrace {
			s.mu.Lock()
			hook := s.onMisfire
			s.mu.Unlock()
			if hook != nil {
				hook()
			}
			return
		}

		claimed, err := s.store.ClaimRun(context.Background(), jobID, s.claimTTL)
		if err != nil || !claimed {
			// Either the claim failed outright, or another replica already
			// holds it for this tick; fail closed in both cases rather than
			// risk a double-fire.
			return
		}
		defer func() {
			_ = s.store.ReleaseRun(context.Background(), jobID)
		}()
		s.execute(context.Background(), jobID)
	}
}
