// Package ingress implements the Event Ingress webhook endpoint
// (spec.md §4.7, C7): the single {ANY_METHOD} /webhook/{path*} route that
// every provider's inbound event arrives through.
package ingress

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/infra/server/router"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/pkg/logger"
)

// Handler runs the full §4.7 algorithm for one inbound request.
func Handler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	path := normalizePath("/webhook" + c.Param("path"))
	hook, err := state.Triggers.FindWebhookByPath(ctx, path)
	if err != nil {
		router.RespondWithError(c, http.StatusNotFound, router.NewRequestError(
			http.StatusNotFound, "webhook not found", err,
		))
		return
	}

	candidates, p, err := resolveCandidates(ctx, state, hook)
	if err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "failed to resolve webhook owner", err,
		))
		return
	}
	if len(candidates) == 0 {
		router.RespondOK(c, "No active deployment found, only sent to dev mode.", nil)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "failed to read request body", err,
		))
		return
	}
	req := &provider.WebhookRequest{
		Method:  c.Request.Method,
		Path:    path,
		Headers: c.Request.Header,
		Body:    body,
		Query:   c.Request.URL.Query(),
	}

	adapter, err := provider.Resolve(provider.Kind(p.Type))
	if err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "no adapter registered for provider", err,
		))
		return
	}
	cfg, err := decryptConfig(state, p)
	if err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "failed to decrypt provider config", err,
		))
		return
	}

	resp, err := adapter.ValidateWebhook(ctx, req, cfg)
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "webhook validation failed", err,
		))
		return
	}
	if resp != nil {
		c.JSON(resp.StatusCode, resp.Body)
		return
	}

	matched, err := adapter.ProcessWebhook(ctx, req, cfg, candidates)
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "failed to process webhook", err,
		))
		return
	}
	if len(matched) == 0 {
		router.RespondOK(c, "No active deployment found, only sent to dev mode.", nil)
		return
	}

	data := buildEventData(c, req)
	for _, t := range matched {
		go dispatchOne(ctx, state, t, data, log)
	}

	router.RespondOK(c, "invoked", gin.H{
		"status":      "invoked",
		"workflow_id": matched[0].WorkflowID.String(),
		"webhook_id":  hook.ID.String(),
	})
}

// resolveCandidates loads the trigger(s) an IncomingWebhook routes to and
// the provider that owns them (spec.md §4.7 step 3).
func resolveCandidates(
	ctx context.Context,
	state *appstate.State,
	hook *trigger.IncomingWebhook,
) ([]*trigger.Trigger, *provider.Provider, error) {
	switch hook.Owner {
	case trigger.WebhookOwnerTrigger:
		if hook.TriggerID == nil {
			return nil, nil, fmt.Errorf("trigger-owned webhook missing trigger_id")
		}
		t, err := state.Triggers.Get(ctx, *hook.TriggerID)
		if err != nil {
			return nil, nil, fmt.Errorf("load owning trigger: %w", err)
		}
		p, err := state.Providers.Get(ctx, t.NamespaceID, provider.Kind(t.ProviderType), t.ProviderAlias)
		if err != nil {
			return nil, nil, fmt.Errorf("load owning provider: %w", err)
		}
		return []*trigger.Trigger{t}, p, nil
	case trigger.WebhookOwnerProvider:
		if hook.ProviderID == nil {
			return nil, nil, fmt.Errorf("provider-owned webhook missing provider_id")
		}
		p, err := state.Providers.GetByID(ctx, *hook.ProviderID)
		if err != nil {
			return nil, nil, fmt.Errorf("load owning provider: %w", err)
		}
		triggers, err := state.Triggers.ListByProvider(ctx, string(p.Type), p.Alias, p.NamespaceID)
		if err != nil {
			return nil, nil, fmt.Errorf("list triggers for provider: %w", err)
		}
		return triggers, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown webhook owner %q", hook.Owner)
	}
}

func decryptConfig(state *appstate.State, p *provider.Provider) (provider.Config, error) {
	if len(p.Config) == 0 {
		return provider.Config{}, nil
	}
	plaintext, err := state.Secrets.Decrypt(p.Config)
	if err != nil {
		return nil, err
	}
	return provider.DecodeConfig(plaintext)
}

func buildEventData(c *gin.Context, req *provider.WebhookRequest) map[string]any {
	params := make(map[string]string, len(c.Params))
	for _, pr := range c.Params {
		params[pr.Key] = pr.Value
	}
	query := make(map[string]string, len(req.Query))
	for k, v := range req.Query {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return execution.WebhookEventData(req.Method, req.Path, req.Headers, req.Body, query, params)
}

// dispatchOne spawns one independent dispatch (spec.md §4.7 step 7): it
// creates the RECEIVED history row and calls the Dispatcher, detached from
// the request context so it outlives the HTTP response.
func dispatchOne(ctx context.Context, state *appstate.State, t *trigger.Trigger, data map[string]any, log logger.Logger) {
	dctx := context.WithoutCancel(ctx)
	hist, err := state.History.Create(dctx, t.WorkflowID, t.ID)
	if err != nil {
		log.Error("Failed to create execution history row", "trigger_id", t.ID.String(), "error", err)
		return
	}
	if err := state.Dispatcher.Dispatch(dctx, t, data, hist.ID); err != nil {
		log.Error("Webhook dispatch failed", "trigger_id", t.ID.String(), "execution_id", hist.ID.String(), "error", err)
	}
}

// normalizePath ensures a single leading slash and no trailing slash
// (spec.md §4.7 step 1).
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
