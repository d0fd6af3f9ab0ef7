package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/pkg/logger"
)

// NewCronExecuteFunc builds the scheduler.ExecuteFunc that backs every
// recurring_task_ job: spec.md §4.6's executeCronJob(triggerId) algorithm.
// It resolves the firing job id back to its trigger, opens a RECEIVED
// history row, and hands off to the Dispatcher. Any failure is logged;
// the scheduler never sees an error from a fired job.
func NewCronExecuteFunc(
	triggers trigger.Registry,
	history execution.HistoryStore,
	dispatcher *execution.Dispatcher,
) scheduler.ExecuteFunc {
	return func(ctx context.Context, jobID string) {
		log := logger.FromContext(ctx).With("job_id", jobID)

		recurringTaskID, err := recurringTaskIDFromJobID(jobID)
		if err != nil {
			log.Error("Cron callback: cannot parse job id", "error", err)
			return
		}
		t, err := triggers.FindTriggerByScheduleID(ctx, recurringTaskID)
		if err != nil {
			log.Error("Cron callback: backing trigger not found", "error", err)
			return
		}
		sched, err := cronScheduleFromInput(t.Input)
		if err != nil {
			log.Error("Cron callback: trigger has no usable schedule", "trigger_id", t.ID.String(), "error", err)
			return
		}

		hist, err := history.Create(ctx, t.WorkflowID, t.ID)
		if err != nil {
			log.Error("Cron callback: failed to create history row", "trigger_id", t.ID.String(), "error", err)
			return
		}
		data := execution.CronEventData(time.Now().UTC(), scheduleExpression(sched))

		if err := dispatcher.Dispatch(ctx, t, data, hist.ID); err != nil {
			log.Error("Cron dispatch failed", "trigger_id", t.ID.String(), "execution_id", hist.ID.String(), "error", err)
		}
	}
}

// scheduleExpression renders sched as the human-readable string the V2
// cron event payload's `expression` field carries (spec.md §4.8).
func scheduleExpression(sched scheduler.Schedule) string {
	if sched.CronExpression != "" {
		return sched.CronExpression
	}
	return fmt.Sprintf("@every %ds", sched.IntervalSeconds)
}

func recurringTaskIDFromJobID(jobID string) (core.ID, error) {
	if !strings.HasPrefix(jobID, scheduler.RecurringTaskJobPrefix) {
		return "", fmt.Errorf("job id %q missing %q prefix", jobID, scheduler.RecurringTaskJobPrefix)
	}
	return core.ParseID(strings.TrimPrefix(jobID, scheduler.RecurringTaskJobPrefix))
}
