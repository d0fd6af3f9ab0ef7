package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/runtime"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/engine/workflow"
	"github.com/hookflow/hookflow/pkg/logger"
)

// Dispatcher implements the Execution Dispatcher (spec.md §4.8, C8): mint
// a workflow JWT, find the active deployment, commit a STARTED history
// row, resolve the image digest, decrypt provider configs, build the V2
// payload, and fire-and-forget invoke the runtime.
type Dispatcher struct {
	history   HistoryStore
	workflows workflow.Registry
	providers provider.Registry
	runtimes  runtime.Registry
	backend   runtime.Backend
	resolver  ImageResolver
	signer    *JWTSigner
	secrets   *secretbox.Box
	publicURL string
}

// NewDispatcher wires the Dispatcher's collaborators.
func NewDispatcher(
	history HistoryStore,
	workflows workflow.Registry,
	providers provider.Registry,
	runtimes runtime.Registry,
	backend runtime.Backend,
	resolver ImageResolver,
	signer *JWTSigner,
	secrets *secretbox.Box,
	publicURL string,
) *Dispatcher {
	return &Dispatcher{
		history:   history,
		workflows: workflows,
		providers: providers,
		runtimes:  runtimes,
		backend:   backend,
		resolver:  resolver,
		signer:    signer,
		secrets:   secrets,
		publicURL: publicURL,
	}
}

// Dispatch runs the full §4.8 algorithm for one trigger firing. data is
// the event-specific payload already shaped per trigger kind (webhook,
// cron, or manual); executionID names the already-created RECEIVED row.
func (d *Dispatcher) Dispatch(ctx context.Context, t *trigger.Trigger, data any, executionID core.ID) error {
	log := logger.FromContext(ctx).With("execution_id", executionID.String(), "workflow_id", t.WorkflowID.String())

	deployment, err := d.workflows.LatestActiveDeployment(ctx, t.WorkflowID)
	if err != nil {
		return fmt.Errorf("dispatch: load active deployment: %w", err)
	}
	if deployment == nil {
		if err := d.history.MarkNoDeployment(ctx, executionID); err != nil {
			return fmt.Errorf("dispatch: mark no deployment: %w", err)
		}
		log.Info("No active deployment; execution marked NO_DEPLOYMENT")
		return nil
	}

	if err := d.history.MarkStarted(ctx, executionID, deployment.ID); err != nil {
		return fmt.Errorf("dispatch: mark started: %w", err)
	}

	authToken, err := d.signer.Mint(deployment.ID, t.WorkflowID, t.NamespaceID)
	if err != nil {
		log.Error("Failed to mint workflow jwt", "error", err)
		return fmt.Errorf("dispatch: mint jwt: %w", err)
	}

	rt, err := d.runtimes.Get(ctx, deployment.RuntimeID)
	if err != nil {
		log.Error("Failed to load runtime", "error", err)
		return fmt.Errorf("dispatch: load runtime: %w", err)
	}
	digest, err := d.resolver.ResolveDigest(ctx, rt.Config.ImageHash)
	if err != nil {
		log.Error("Failed to resolve image digest; not invoking", "error", err, "image_hash", rt.Config.ImageHash)
		return nil
	}
	invokeCfg := rt.Config
	invokeCfg.ImageHash = digest

	providerConfigs, err := d.decryptedProviderConfigs(ctx, t.NamespaceID)
	if err != nil {
		log.Error("Failed to load/decrypt provider configs", "error", err)
		return fmt.Errorf("dispatch: load provider configs: %w", err)
	}

	payload := runtime.InvokePayload{
		Trigger: runtime.TriggerRef{
			Provider:    runtime.ProviderRef{Type: t.ProviderType, Alias: t.ProviderAlias},
			TriggerType: t.TriggerType,
			Input:       t.Input,
		},
		Data:            data,
		BackendURL:      d.publicURL,
		AuthToken:       authToken,
		ExecutionID:     executionID.String(),
		ProviderConfigs: providerConfigs,
	}

	if err := d.backend.InvokeTrigger(ctx, rt.ID, invokeCfg, payload); err != nil {
		log.Error("Runtime invocation failed", "error", err)
		return nil
	}
	return nil
}

func (d *Dispatcher) decryptedProviderConfigs(ctx context.Context, namespaceID core.ID) (map[string]map[string]any, error) {
	providers, err := d.providers.ListByNamespace(ctx, namespaceID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make(map[string]map[string]any, len(providers))
	for _, p := range providers {
		if len(p.Config) == 0 {
			out[p.Key()] = map[string]any{}
			continue
		}
		plaintext, err := d.secrets.Decrypt(p.Config)
		if err != nil {
			return nil, fmt.Errorf("decrypt provider %s config: %w", p.Key(), err)
		}
		cfg, err := provider.DecodeConfig(plaintext)
		if err != nil {
			return nil, fmt.Errorf("decode provider %s config: %w", p.Key(), err)
		}
		out[p.Key()] = cfg
	}
	return out, nil
}

// WebhookEventData builds the V2 payload's webhook `data` shape
// (spec.md §4.8).
func WebhookEventData(method, path string, headers map[string][]string, body []byte, query, params map[string]string) map[string]any {
	return map[string]any{
		"method":  method,
		"path":    path,
		"headers": headers,
		"body":    string(body),
		"query":   query,
		"params":  params,
	}
}

// CronEventData builds the V2 payload's cron `data` shape.
func CronEventData(scheduledTime time.Time, expression string) map[string]any {
	return map[string]any{
		"scheduledTime": scheduledTime.UTC().Format(time.RFC3339),
		"expression":    expression,
	}
}

// ManualEventData builds the V2 payload's manual-invocation `data` shape.
func ManualEventData(triggeredBy string, inputData any) map[string]any {
	return map[string]any{
		"manually_triggered": true,
		"triggered_by":       triggeredBy,
		"input_data":         inputData,
	}
}
