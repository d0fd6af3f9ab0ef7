// Package runtime implements the Runtime Abstraction (spec.md §4.1, C1): a
// uniform interface for provisioning and invoking the execution units that
// run user workflow code, with three concrete backends (container,
// function, pod).
package runtime

import (
	"context"
	"time"

	"github.com/hookflow/hookflow/engine/core"
)

// Status is the provisioning status of a Runtime.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// LogEntry is one creation-log line attached to a Runtime (spec.md §3).
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Config is the opaque, content-addressed provisioning config for a
// Runtime: an image reference plus resource hints. ConfigHash is computed
// by the caller via core.ETagFromAny(Config) before the content-addressed
// upsert (spec.md §3 Runtime.config_hash).
type Config struct {
	ImageRef    string            `json:"image_ref"`
	ImageHash   string            `json:"image_hash"`
	CPULimit    string            `json:"cpu_limit,omitempty"`
	MemoryLimit string            `json:"memory_limit,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// Runtime is the DB-facing entity described in spec.md §3: content-addressed
// by ConfigHash, provisioned asynchronously by a Backend.
type Runtime struct {
	ID         core.ID    `json:"id"`
	ConfigHash string     `json:"config_hash"`
	Config     Config     `json:"config"`
	Status     Status     `json:"status"`
	Logs       []LogEntry `json:"logs"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// InvokePayload is the V2 wire payload (spec.md §4.8), passed through
// verbatim by the Backend to the execution unit.
type InvokePayload struct {
	Trigger         TriggerRef                `json:"trigger"`
	Data            any                       `json:"data"`
	BackendURL      string                    `json:"backendUrl"`
	AuthToken       string                    `json:"authToken"`
	ExecutionID     string                    `json:"executionId"`
	ProviderConfigs map[string]map[string]any `json:"providerConfigs"`
}

// TriggerRef is the trigger-identifying slice of InvokePayload.
type TriggerRef struct {
	Provider    ProviderRef `json:"provider"`
	TriggerType string      `json:"triggerType"`
	Input       any         `json:"input"`
}

// ProviderRef identifies a provider by type+alias, the part of a Trigger's
// identity that travels in the wire payload.
type ProviderRef struct {
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// Backend is the uniform interface every concrete runtime implements
// (spec.md §4.1).
type Backend interface {
	// CreateRuntime idempotently provisions an execution unit for cfg under
	// the given content-addressed runtimeID (assigned by the Runtime's
	// registry upsert). Returns immediately; long provisioning is observed
	// via GetRuntimeStatus.
	CreateRuntime(ctx context.Context, runtimeID core.ID, cfg Config) (Status, []LogEntry, error)
	// GetRuntimeStatus is a non-mutating probe.
	GetRuntimeStatus(ctx context.Context, runtimeID core.ID) (Status, []LogEntry, error)
	// InvokeTrigger fires payload at the execution unit. Fire-and-forget:
	// callers must not block the request path on its return beyond the
	// backend's own bounded timeout.
	InvokeTrigger(ctx context.Context, runtimeID core.ID, cfg Config, payload InvokePayload) error
	// TeardownUnusedRuntimes is periodic maintenance (idle reaping for the
	// container backend; a no-op for function/pod backends).
	TeardownUnusedRuntimes(ctx context.Context) error
}
