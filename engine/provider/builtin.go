package provider

import (
	"context"
	"encoding/json"

	"github.com/hookflow/hookflow/engine/trigger"
)

// builtinAdapter backs the "builtin" provider type (spec.md §4.4): webhook
// triggers are routed purely by IncomingWebhook.path, and cron triggers are
// fired by the scheduler. It has no external side effect to reconcile.
type builtinAdapter struct {
	DefaultMatcher
}

func newBuiltinAdapter() Adapter { return &builtinAdapter{} }

func (a *builtinAdapter) Kind() Kind { return KindBuiltin }

func (a *builtinAdapter) Create(
	ctx context.Context,
	_ Config,
	triggerType string,
	input json.RawMessage,
	utils Utils,
) ([]byte, error) {
	switch triggerType {
	case "onWebhook":
		var in struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal(input, &in)
		ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{Owner: trigger.WebhookOwnerTrigger, Path: in.Path})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"webhook_id": ref.ID, "path": ref.Path})
	case "onCron":
		var in struct {
			CronExpression  string `json:"cronExpression"`
			IntervalSeconds int    `json:"intervalSeconds"`
		}
		_ = json.Unmarshal(input, &in)
		ref, err := utils.RegisterRecurringTask(ctx, RegisterRecurringTaskOptions{
			CronExpression:  in.CronExpression,
			IntervalSeconds: in.IntervalSeconds,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"recurring_task_id": ref.ID})
	default:
		return nil, nil
	}
}

func (a *builtinAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *builtinAdapter) Destroy(
	ctx context.Context,
	_ Config,
	triggerType string,
	_ json.RawMessage,
	_ []byte,
	utils Utils,
) error {
	if triggerType == "onCron" {
		return utils.UnregisterRecurringTask(ctx)
	}
	return nil
}
