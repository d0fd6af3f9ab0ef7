package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/hookflow/hookflow/engine/trigger"
)

// WebhookRequest is the framework-agnostic view of an inbound HTTP request
// an adapter's Match API operates on (spec.md §4.7). Event Ingress builds
// this from the gin request; adapters never see *gin.Context.
type WebhookRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Query   url.Values
}

// WebhookResponse is returned by ValidateWebhook to short-circuit
// processing (Slack url_verification, Discord PING).
type WebhookResponse struct {
	StatusCode int
	Body       any
}

// RegisterWebhookOptions are the parameters accepted by Utils.RegisterWebhook
// (spec.md §4.4).
type RegisterWebhookOptions struct {
	Path          string
	Method        string
	Owner         trigger.WebhookOwner
	ReuseExisting bool
}

// WebhookRef is what Utils.RegisterWebhook returns to the adapter.
type WebhookRef struct {
	ID     string
	URL    string
	Path   string
	Method string
}

// RegisterRecurringTaskOptions are the parameters accepted by
// Utils.RegisterRecurringTask.
type RegisterRecurringTaskOptions struct {
	CronExpression  string
	IntervalSeconds int
}

// RecurringTaskRef is what Utils.RegisterRecurringTask returns.
type RecurringTaskRef struct {
	ID string
}

// Utils is the narrow capability object the Lifecycle Manager passes into
// Create/Destroy (spec.md §4.4). The concrete implementation lives in
// engine/lifecycle, which has access to both the trigger registry and the
// scheduler; this package only depends on the interface to avoid an import
// cycle between provider and lifecycle/scheduler.
type Utils interface {
	RegisterWebhook(ctx context.Context, opts RegisterWebhookOptions) (*WebhookRef, error)
	RegisterRecurringTask(ctx context.Context, opts RegisterRecurringTaskOptions) (*RecurringTaskRef, error)
	UnregisterRecurringTask(ctx context.Context) error
}

// Adapter is the polymorphic per-provider-type implementation of the
// Reconcile and Match APIs (spec.md §4.4).
type Adapter interface {
	Kind() Kind

	// Create performs the external side effect for a newly-declared
	// trigger and returns its opaque state.
	Create(ctx context.Context, cfg Config, triggerType string, input json.RawMessage, utils Utils) ([]byte, error)
	// Refresh verifies the external artifact still exists and returns
	// possibly-updated state. Must be idempotent.
	Refresh(ctx context.Context, cfg Config, triggerType string, input json.RawMessage, state []byte) ([]byte, error)
	// Destroy deletes the external artifact. Must tolerate an artifact
	// that is already gone.
	Destroy(ctx context.Context, cfg Config, triggerType string, input json.RawMessage, state []byte, utils Utils) error

	// ValidateWebhook handles challenge/verification handshakes. A non-nil
	// response short-circuits further processing.
	ValidateWebhook(ctx context.Context, req *WebhookRequest, cfg Config) (*WebhookResponse, error)
	// ProcessWebhook maps the provider's native event envelope to a
	// trigger_type and returns the subset of candidates whose input
	// filters match.
	ProcessWebhook(
		ctx context.Context,
		req *WebhookRequest,
		cfg Config,
		candidates []*trigger.Trigger,
	) ([]*trigger.Trigger, error)
}

// DefaultMatcher implements the "no override" match behavior: return all
// candidates unfiltered (spec.md §4.4 "Default match behavior"). Adapters
// embed it and only override ProcessWebhook/ValidateWebhook when the
// provider needs event-class mapping or a handshake.
type DefaultMatcher struct{}

func (DefaultMatcher) ValidateWebhook(context.Context, *WebhookRequest, Config) (*WebhookResponse, error) {
	return nil, nil
}

func (DefaultMatcher) ProcessWebhook(
	_ context.Context,
	_ *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	return candidates, nil
}
