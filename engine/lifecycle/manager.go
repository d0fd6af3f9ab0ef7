// Package lifecycle implements the Trigger Lifecycle Manager (spec.md
// §4.5, C5): the reconcile-diff sync algorithm that creates, refreshes,
// and destroys provider artifacts as a workflow's declared triggers
// change, plus the concrete provider.Utils facade and the periodic
// recurring-task reconciliation the Scheduler depends on.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/engine/workflow"
	"github.com/hookflow/hookflow/pkg/logger"
)

// DesiredTrigger is one entry of the desired[] list passed to Sync: a
// workflow's declared subscription as parsed from user source.
type DesiredTrigger struct {
	ProviderType  string
	ProviderAlias string
	TriggerType   string
	Input         json.RawMessage
}

func (d DesiredTrigger) identity() trigger.Identity {
	return trigger.IdentityOf(d.ProviderType, d.ProviderAlias, d.TriggerType, d.Input)
}

// CreateFailure is one failed toAdd entry, reported alongside the
// aggregate 400 (spec.md §4.5 step 9).
type CreateFailure struct {
	ProviderType string `json:"provider_type"`
	TriggerType  string `json:"trigger_type"`
	Error        string `json:"error"`
}

// WebhookInfo is one entry of Sync's returned webhook list (spec.md §4.5
// step 10).
type WebhookInfo struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Path          string `json:"path"`
	Method        string `json:"method"`
	ProviderType  string `json:"provider_type"`
	ProviderAlias string `json:"provider_alias"`
	TriggerType   string `json:"trigger_type"`
	TriggerID     string `json:"trigger_id"`
}

// Manager owns the sync algorithm and the collaborators it needs:
// durable trigger/provider/workflow registries, the scheduler, and the
// secretbox used to decrypt provider config before handing it to an
// adapter.
type Manager struct {
	triggers  trigger.Registry
	providers provider.Registry
	workflows workflow.Registry
	scheduler *scheduler.Scheduler
	secrets   *secretbox.Box
	publicURL string
}

// New wires a Manager.
func New(
	triggers trigger.Registry,
	providers provider.Registry,
	workflows workflow.Registry,
	sched *scheduler.Scheduler,
	secrets *secretbox.Box,
	publicURL string,
) *Manager {
	return &Manager{
		triggers:  triggers,
		providers: providers,
		workflows: workflows,
		scheduler: sched,
		secrets:   secrets,
		publicURL: publicURL,
	}
}

// Sync runs the full reconcile-diff algorithm (spec.md §4.5). On
// partial toAdd failure it returns a *core.Error carrying every
// collected failure instead of aborting the whole sync — registry-level
// changes already flushed are not rolled back, per spec.
func (m *Manager) Sync(
	ctx context.Context,
	workflowID, namespaceID core.ID,
	desired []DesiredTrigger,
) ([]WebhookInfo, error) {
	log := logger.FromContext(ctx).With("workflow_id", workflowID.String())

	if err := m.ensureProviders(ctx, namespaceID, desired); err != nil {
		return nil, fmt.Errorf("lifecycle: ensure providers: %w", err)
	}

	existing, err := m.triggers.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list existing triggers: %w", err)
	}
	existingMap := make(map[trigger.Identity]*trigger.Trigger, len(existing))
	for _, t := range existing {
		existingMap[t.Identity()] = t
	}

	desiredMap := make(map[trigger.Identity]DesiredTrigger, len(desired))
	for _, d := range desired {
		desiredMap[d.identity()] = d
	}

	deployment, err := m.workflows.LatestActiveDeployment(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load active deployment: %w", err)
	}
	deployedIdentities := workflow.DeployedIdentities(deployment)

	var toRemove, toAdd, toKeep []trigger.Identity
	for id := range existingMap {
		if _, wanted := desiredMap[id]; wanted {
			toKeep = append(toKeep, id)
			continue
		}
		if _, protected := deployedIdentities[id]; protected {
			continue
		}
		toRemove = append(toRemove, id)
	}
	for id := range desiredMap {
		if _, exists := existingMap[id]; !exists {
			toAdd = append(toAdd, id)
		}
	}

	for _, id := range toRemove {
		m.destroy(ctx, existingMap[id], log)
	}

	var failures []CreateFailure
	for _, id := range toAdd {
		d := desiredMap[id]
		created, createErr := m.create(ctx, workflowID, namespaceID, d)
		if createErr != nil {
			failures = append(failures, CreateFailure{
				ProviderType: d.ProviderType,
				TriggerType:  d.TriggerType,
				Error:        createErr.Error(),
			})
			log.Error("Failed to create trigger", "provider_type", d.ProviderType, "trigger_type", d.TriggerType, "error", createErr)
			continue
		}
		existingMap[id] = created
	}

	for _, id := range toKeep {
		m.refresh(ctx, existingMap[id], log)
	}

	webhooks, err := m.collectWebhooks(ctx, existingMap, append(toAdd, toKeep...))
	if err != nil {
		return nil, fmt.Errorf("lifecycle: collect webhooks: %w", err)
	}

	if len(failures) > 0 {
		details := make(map[string]any, 1)
		details["failed_triggers"] = failures
		return webhooks, core.NewError(
			fmt.Errorf("failed to create one or more triggers"),
			"TRIGGER_SYNC_PARTIAL_FAILURE",
			details,
		)
	}
	return webhooks, nil
}

func (m *Manager) ensureProviders(ctx context.Context, namespaceID core.ID, desired []DesiredTrigger) error {
	seen := make(map[string]bool)
	for _, d := range desired {
		key := d.ProviderType + ":" + d.ProviderAlias
		if seen[key] {
			continue
		}
		seen[key] = true

		kind := provider.Kind(d.ProviderType)
		if _, err := m.providers.Get(ctx, namespaceID, kind, d.ProviderAlias); err == nil {
			continue
		}
		if !provider.NoSetupKinds[kind] {
			continue // providers requiring setup must already exist; create() will fail fast below
		}
		p := &provider.Provider{
			ID:          core.MustNewID(),
			NamespaceID: namespaceID,
			Type:        kind,
			Alias:       d.ProviderAlias,
			Config:      nil,
		}
		if err := m.providers.Create(ctx, p); err != nil {
			return fmt.Errorf("auto-create provider %s: %w", key, err)
		}
	}
	return nil
}

func (m *Manager) loadProviderConfig(ctx context.Context, namespaceID core.ID, providerType, alias string) (*provider.Provider, provider.Config, error) {
	p, err := m.providers.Get(ctx, namespaceID, provider.Kind(providerType), alias)
	if err != nil {
		return nil, nil, fmt.Errorf("provider %s:%s not found: %w", providerType, alias, err)
	}
	if len(p.Config) == 0 {
		return p, provider.Config{}, nil
	}
	plaintext, err := m.secrets.Decrypt(p.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt provider %s:%s config: %w", providerType, alias, err)
	}
	cfg, err := provider.DecodeConfig(plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("decode provider %s:%s config: %w", providerType, alias, err)
	}
	return p, cfg, nil
}

func (m *Manager) create(ctx context.Context, workflowID, namespaceID core.ID, d DesiredTrigger) (*trigger.Trigger, error) {
	p, cfg, err := m.loadProviderConfig(ctx, namespaceID, d.ProviderType, d.ProviderAlias)
	if err != nil {
		return nil, err
	}
	adapter, err := provider.Resolve(provider.Kind(d.ProviderType))
	if err != nil {
		return nil, err
	}

	placeholder := &trigger.Trigger{
		ID:            core.MustNewID(),
		WorkflowID:    workflowID,
		NamespaceID:   namespaceID,
		ProviderType:  d.ProviderType,
		ProviderAlias: d.ProviderAlias,
		TriggerType:   d.TriggerType,
		Input:         d.Input,
	}
	if err := m.triggers.Create(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("insert placeholder trigger: %w", err)
	}

	utils := newUtils(m, workflowID, placeholder.ID, p.ID)
	state, err := adapter.Create(ctx, cfg, d.TriggerType, d.Input, utils)
	if err != nil {
		if delErr := m.triggers.Delete(ctx, placeholder.ID); delErr != nil {
			return nil, fmt.Errorf("create trigger: %w (and rollback failed: %v)", err, delErr)
		}
		return nil, err
	}
	if err := m.triggers.UpdateState(ctx, placeholder.ID, state); err != nil {
		return nil, fmt.Errorf("persist trigger state: %w", err)
	}
	placeholder.State = state
	return placeholder, nil
}

func (m *Manager) destroy(ctx context.Context, t *trigger.Trigger, log logger.Logger) {
	p, cfg, err := m.loadProviderConfig(ctx, t.NamespaceID, t.ProviderType, t.ProviderAlias)
	if err != nil {
		log.Warn("Provider not found during trigger destruction", "trigger_id", t.ID.String(), "error", err)
		if delErr := m.triggers.Delete(ctx, t.ID); delErr != nil {
			log.Error("Failed to delete orphaned trigger", "trigger_id", t.ID.String(), "error", delErr)
		}
		return
	}
	adapter, err := provider.Resolve(provider.Kind(t.ProviderType))
	if err != nil {
		log.Error("No adapter registered for provider type", "provider_type", t.ProviderType, "error", err)
		return
	}
	utils := newUtils(m, t.WorkflowID, t.ID, p.ID)
	if err := adapter.Destroy(ctx, cfg, t.TriggerType, t.Input, t.State, utils); err != nil {
		log.Error("Failed to destroy trigger artifact", "trigger_id", t.ID.String(), "error", err)
	}
	if err := m.triggers.Delete(ctx, t.ID); err != nil {
		log.Error("Failed to delete trigger row", "trigger_id", t.ID.String(), "error", err)
	}
}

func (m *Manager) refresh(ctx context.Context, t *trigger.Trigger, log logger.Logger) {
	if len(t.State) == 0 {
		return
	}
	_, cfg, err := m.loadProviderConfig(ctx, t.NamespaceID, t.ProviderType, t.ProviderAlias)
	if err != nil {
		log.Warn("Provider not found during trigger refresh", "trigger_id", t.ID.String(), "error", err)
		return
	}
	adapter, err := provider.Resolve(provider.Kind(t.ProviderType))
	if err != nil {
		log.Error("No adapter registered for provider type", "provider_type", t.ProviderType, "error", err)
		return
	}
	newState, err := adapter.Refresh(ctx, cfg, t.TriggerType, t.Input, t.State)
	if err != nil {
		log.Error("Failed to refresh trigger artifact", "trigger_id", t.ID.String(), "error", err)
		return
	}
	if err := m.triggers.UpdateState(ctx, t.ID, newState); err != nil {
		log.Error("Failed to persist refreshed trigger state", "trigger_id", t.ID.String(), "error", err)
	}
}

func (m *Manager) collectWebhooks(
	ctx context.Context,
	byIdentity map[trigger.Identity]*trigger.Trigger,
	active []trigger.Identity,
) ([]WebhookInfo, error) {
	var out []WebhookInfo
	seen := make(map[string]bool)
	for _, id := range active {
		t, ok := byIdentity[id]
		if !ok {
			continue
		}
		p, err := m.providers.Get(ctx, t.NamespaceID, provider.Kind(t.ProviderType), t.ProviderAlias)
		if err != nil {
			continue
		}
		hook, err := m.triggers.FindProviderWebhook(ctx, p.ID)
		if err != nil {
			hook = nil
		}
		if hook == nil {
			byTrigger, err := m.findTriggerWebhook(ctx, t.ID)
			if err != nil || byTrigger == nil {
				continue
			}
			hook = byTrigger
		}
		if seen[hook.ID.String()] {
			continue
		}
		seen[hook.ID.String()] = true
		out = append(out, WebhookInfo{
			ID:            hook.ID.String(),
			URL:           m.publicURL + hook.Path,
			Path:          hook.Path,
			Method:        hook.Method,
			ProviderType:  t.ProviderType,
			ProviderAlias: t.ProviderAlias,
			TriggerType:   t.TriggerType,
			TriggerID:     t.ID.String(),
		})
	}
	return out, nil
}

func (m *Manager) findTriggerWebhook(ctx context.Context, triggerID core.ID) (*trigger.IncomingWebhook, error) {
	return m.triggers.FindWebhookByTrigger(ctx, triggerID)
}
