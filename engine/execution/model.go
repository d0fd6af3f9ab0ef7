// Package execution implements the Execution History Store (spec.md §4.2,
// C2) and the Execution Dispatcher (spec.md §4.8, C8): the append-then-
// update history log and the fire-and-forget runtime invocation path.
package execution

import (
	"time"

	"github.com/hookflow/hookflow/engine/core"
)

// Status is a position in the execution state machine (spec.md §4.2).
// There are no backward transitions.
type Status string

const (
	StatusReceived     Status = "RECEIVED"
	StatusStarted      Status = "STARTED"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusTimeout      Status = "TIMEOUT"
	StatusNoDeployment Status = "NO_DEPLOYMENT"
)

// LogEntry is one line of runtime-reported log output attached to a
// History row.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// History is one ExecutionHistory row (spec.md §3).
type History struct {
	ID           core.ID    `json:"id"`
	WorkflowID   core.ID    `json:"workflow_id"`
	TriggerID    core.ID    `json:"trigger_id"`
	DeploymentID *core.ID   `json:"deployment_id,omitempty"`
	Status       Status     `json:"status"`
	ReceivedAt   time.Time  `json:"received_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ErrorStack   string     `json:"error_stack,omitempty"`
	Logs         []LogEntry `json:"logs,omitempty"`
}

// DurationMS is derived, never stored (spec.md §4.2).
func (h *History) DurationMS() *int64 {
	if h.StartedAt == nil || h.CompletedAt == nil {
		return nil
	}
	ms := h.CompletedAt.Sub(*h.StartedAt).Milliseconds()
	return &ms
}

// ListFilter scopes a paginated history read (spec.md §4.2 "Read queries").
type ListFilter struct {
	WorkflowID *core.ID
	Status     *Status
	Limit      int
	Offset     int
}
