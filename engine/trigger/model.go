// Package trigger implements the Trigger Registry (spec.md §4.3, C3): the
// durable table of declared triggers, their externally-materialized state,
// and the IncomingWebhook/RecurringTask rows that route events to them.
package trigger

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/hookflow/hookflow/engine/core"
)

// Trigger is a workflow's declared subscription to a provider event class
// (spec.md §3). State is opaque ciphertext at this layer — the registry
// never decodes it; encryption/decryption is a lifecycle-manager/dispatcher
// concern (secretbox).
type Trigger struct {
	ID            core.ID         `json:"id"`
	WorkflowID    core.ID         `json:"workflow_id"`
	NamespaceID   core.ID         `json:"namespace_id"`
	ProviderType  string          `json:"provider_type"`
	ProviderAlias string          `json:"provider_alias"`
	TriggerType   string          `json:"trigger_type"`
	Input         json.RawMessage `json:"input"`
	InputSchema   json.RawMessage `json:"input_schema,omitempty"`
	State         []byte          `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Identity is the tuple that determines reconcile equality (spec.md §9,
// GLOSSARY): (provider_type, provider_alias, trigger_type,
// canonicalJSON(input)).
type Identity struct {
	ProviderType  string
	ProviderAlias string
	TriggerType   string
	CanonicalJSON string
}

// IdentityOf derives t's Identity from its current fields.
func IdentityOf(providerType, providerAlias, triggerType string, input json.RawMessage) Identity {
	return Identity{
		ProviderType:  providerType,
		ProviderAlias: providerAlias,
		TriggerType:   triggerType,
		CanonicalJSON: canonicalJSON(input),
	}
}

// Identity derives the trigger's own identity.
func (t *Trigger) Identity() Identity {
	return IdentityOf(t.ProviderType, t.ProviderAlias, t.TriggerType, t.Input)
}

// canonicalJSON re-encodes raw with sorted object keys so two
// semantically-identical inputs produce the same identity regardless of
// key order, reusing the engine/core canonical-JSON hasher.
func canonicalJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	var b bytes.Buffer
	core.WriteStableJSON(&b, v)
	return b.String()
}

// WebhookOwner discriminates whether an IncomingWebhook is owned by a
// single Trigger (1:1) or shared across a Provider's triggers (1:n).
type WebhookOwner string

const (
	WebhookOwnerTrigger  WebhookOwner = "trigger"
	WebhookOwnerProvider WebhookOwner = "provider"
)

// IncomingWebhook is the public URL path routing table (spec.md §3).
// Exactly one of TriggerID / ProviderID is set, per Owner.
type IncomingWebhook struct {
	ID         core.ID      `json:"id"`
	Path       string       `json:"path"`
	Method     string       `json:"method"`
	Owner      WebhookOwner `json:"owner"`
	TriggerID  *core.ID     `json:"trigger_id,omitempty"`
	ProviderID *core.ID     `json:"provider_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// RecurringTask links a cron/poll-bearing Trigger to a scheduler job
// (spec.md §3). Presence here implies presence of scheduler job
// "recurring_task_<id>".
type RecurringTask struct {
	ID        core.ID   `json:"id"`
	TriggerID core.ID   `json:"trigger_id"`
	CreatedAt time.Time `json:"created_at"`
}

// JobID returns the scheduler job id for this recurring task (spec.md §6).
func (r *RecurringTask) JobID() string {
	return "recurring_task_" + r.ID.String()
}
