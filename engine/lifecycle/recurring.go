package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/pkg/logger"
)

// cronScheduleFromInput extracts a scheduler.Schedule from a cron
// trigger's declared input (spec.md §4.4's builtin onCron shape:
// {cronExpression} or {intervalSeconds}).
func cronScheduleFromInput(input json.RawMessage) (scheduler.Schedule, error) {
	var fields struct {
		CronExpression  string `json:"cronExpression"`
		IntervalSeconds int    `json:"intervalSeconds"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &fields); err != nil {
			return scheduler.Schedule{}, fmt.Errorf("decode trigger input: %w", err)
		}
	}
	if fields.CronExpression == "" && fields.IntervalSeconds <= 0 {
		return scheduler.Schedule{}, fmt.Errorf("trigger input has neither cronExpression nor intervalSeconds")
	}
	return scheduler.Schedule{CronExpression: fields.CronExpression, IntervalSeconds: fields.IntervalSeconds}, nil
}

// SyncAllRecurringTasks is the idempotent scheduler reconciliation
// spec.md §4.6 describes as a Scheduler responsibility: add/update a job
// for every durable RecurringTask row, and remove any scheduler job
// carrying the recurring_task_ prefix that no longer has a backing row.
// It lives here rather than in engine/scheduler because it needs to read
// trigger.RecurringTask rows, which would otherwise cycle scheduler back
// into trigger.
func (m *Manager) SyncAllRecurringTasks(ctx context.Context) error {
	log := logger.FromContext(ctx)

	tasks, err := m.triggers.ListRecurringTasks(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: list recurring tasks: %w", err)
	}
	wanted := make(map[string]bool, len(tasks))

	for _, rt := range tasks {
		jobID := rt.JobID()
		wanted[jobID] = true

		t, err := m.triggers.FindTriggerByScheduleID(ctx, rt.ID)
		if err != nil {
			log.Warn("Orphan recurring task: backing trigger missing", "recurring_task_id", rt.ID.String(), "error", err)
			continue
		}
		sched, err := cronScheduleFromInput(t.Input)
		if err != nil {
			log.Warn("Recurring task trigger has no usable schedule", "trigger_id", t.ID.String(), "error", err)
			continue
		}
		if err := m.scheduler.AddJob(ctx, jobID, sched); err != nil {
			log.Error("Failed to sync recurring task job", "job_id", jobID, "error", err)
		}
	}

	jobs, err := m.scheduler.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: list scheduler jobs: %w", err)
	}
	for _, job := range jobs {
		if !strings.HasPrefix(job.ID, scheduler.RecurringTaskJobPrefix) {
			continue
		}
		if wanted[job.ID] {
			continue
		}
		if err := m.scheduler.RemoveJob(ctx, job.ID); err != nil {
			log.Error("Failed to remove orphan scheduler job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}
