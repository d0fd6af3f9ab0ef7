package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/trigger"
)

// facade is the concrete provider.Utils handed to an adapter's
// Create/Destroy. It is scoped to one trigger/provider pair, grounded on
// the original TriggerUtils(session, provider, trigger, public_api_url)
// (see original_source/app/services/trigger_service_utils.py).
type facade struct {
	mgr        *Manager
	workflowID core.ID
	triggerID  core.ID
	providerID core.ID
}

func newUtils(mgr *Manager, workflowID, triggerID, providerID core.ID) *facade {
	return &facade{mgr: mgr, workflowID: workflowID, triggerID: triggerID, providerID: providerID}
}

var _ provider.Utils = (*facade)(nil)

// RegisterWebhook creates (or, for a reuse_existing provider-owned
// webhook, returns) an IncomingWebhook row.
func (f *facade) RegisterWebhook(ctx context.Context, opts provider.RegisterWebhookOptions) (*provider.WebhookRef, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "POST"
	}

	if opts.Owner == trigger.WebhookOwnerProvider && opts.ReuseExisting {
		existing, err := f.mgr.triggers.FindProviderWebhook(ctx, f.providerID)
		if err == nil && existing != nil {
			return &provider.WebhookRef{
				ID:     existing.ID.String(),
				URL:    f.mgr.publicURL + existing.Path,
				Path:   existing.Path,
				Method: existing.Method,
			}, nil
		}
	}

	path := normalizeWebhookPath(f.workflowID, opts.Path)
	webhook := &trigger.IncomingWebhook{
		Path:   path,
		Method: method,
		Owner:  opts.Owner,
	}
	switch opts.Owner {
	case trigger.WebhookOwnerProvider:
		webhook.ProviderID = &f.providerID
	case trigger.WebhookOwnerTrigger:
		webhook.TriggerID = &f.triggerID
	default:
		return nil, fmt.Errorf("lifecycle: webhook owner must be %q or %q", trigger.WebhookOwnerTrigger, trigger.WebhookOwnerProvider)
	}

	if err := f.mgr.triggers.CreateWebhook(ctx, webhook); err != nil {
		return nil, fmt.Errorf("lifecycle: create webhook: %w", err)
	}
	return &provider.WebhookRef{
		ID:     webhook.ID.String(),
		URL:    f.mgr.publicURL + webhook.Path,
		Path:   webhook.Path,
		Method: webhook.Method,
	}, nil
}

// normalizeWebhookPath mirrors the original generator: a fresh
// ksuid-backed path when none is given, otherwise the caller's custom
// path coerced to a single leading slash. Both are namespaced under
// /webhook/<workflowId>/... so two workflows can never collide on the
// same path (spec.md §4.4, §6).
func normalizeWebhookPath(workflowID core.ID, path string) string {
	prefix := "/webhook/" + workflowID.String()
	if path == "" {
		return prefix + "/" + core.MustNewID().String()
	}
	p := strings.TrimSpace(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return prefix + p
}

// RegisterRecurringTask creates a RecurringTask row and immediately adds
// the corresponding job to the scheduler (spec.md §4.4, §4.6).
func (f *facade) RegisterRecurringTask(ctx context.Context, opts provider.RegisterRecurringTaskOptions) (*provider.RecurringTaskRef, error) {
	if opts.CronExpression == "" && opts.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("lifecycle: recurring task needs a cron expression or an interval")
	}
	rt := &trigger.RecurringTask{TriggerID: f.triggerID}
	if err := f.mgr.triggers.CreateRecurringTask(ctx, rt); err != nil {
		return nil, fmt.Errorf("lifecycle: create recurring task: %w", err)
	}
	sched := scheduler.Schedule{CronExpression: opts.CronExpression, IntervalSeconds: opts.IntervalSeconds}
	if err := f.mgr.scheduler.AddJob(ctx, rt.JobID(), sched); err != nil {
		return nil, fmt.Errorf("lifecycle: schedule recurring task: %w", err)
	}
	return &provider.RecurringTaskRef{ID: rt.ID.String()}, nil
}

// UnregisterRecurringTask removes the scheduler job and deletes the
// RecurringTask row for this trigger, tolerating either being absent.
func (f *facade) UnregisterRecurringTask(ctx context.Context) error {
	rt, err := f.mgr.triggers.FindRecurringTaskByTrigger(ctx, f.triggerID)
	if err != nil {
		return nil // no recurring task for this trigger: nothing to unregister
	}
	if err := f.mgr.scheduler.RemoveJob(ctx, rt.JobID()); err != nil {
		return fmt.Errorf("lifecycle: remove scheduler job: %w", err)
	}
	if err := f.mgr.triggers.DeleteRecurringTask(ctx, f.triggerID); err != nil {
		return fmt.Errorf("lifecycle: delete recurring task: %w", err)
	}
	return nil
}
