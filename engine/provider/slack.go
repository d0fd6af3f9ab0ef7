package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hookflow/hookflow/engine/trigger"
)

// slackAdapter backs the "slack" provider type. Events API apps are
// configured out-of-band in Slack; Create/Refresh/Destroy here only manage
// our own IncomingWebhook row, shared across a provider's triggers since
// Slack posts every event type to a single Events API URL.
type slackAdapter struct{}

func newSlackAdapter() Adapter { return &slackAdapter{} }

func (a *slackAdapter) Kind() Kind { return KindSlack }

type slackState struct {
	WebhookID string `json:"webhook_id"`
}

func (a *slackAdapter) Create(
	ctx context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	utils Utils,
) ([]byte, error) {
	ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{
		Owner:         trigger.WebhookOwnerProvider,
		ReuseExisting: true,
	})
	if err != nil {
		return nil, fmt.Errorf("slack: register webhook: %w", err)
	}
	return json.Marshal(slackState{WebhookID: ref.ID})
}

func (a *slackAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *slackAdapter) Destroy(context.Context, Config, string, json.RawMessage, []byte, Utils) error {
	return nil
}

// ValidateWebhook answers Slack's url_verification handshake, sent once
// when the Events API subscription is configured.
func (a *slackAdapter) ValidateWebhook(_ context.Context, req *WebhookRequest, _ Config) (*WebhookResponse, error) {
	var envelope struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, nil //nolint:nilerr // malformed body: let ProcessWebhook handle/reject it
	}
	if envelope.Type == "url_verification" {
		return &WebhookResponse{StatusCode: http.StatusOK, Body: map[string]string{"challenge": envelope.Challenge}}, nil
	}
	return nil, nil
}

func (a *slackAdapter) ProcessWebhook(
	_ context.Context,
	req *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	var envelope struct {
		Type  string `json:"type"`
		Event struct {
			Type            string `json:"type"`
			Subtype         string `json:"subtype"`
			BotID           string `json:"bot_id"`
			Channel         string `json:"channel"`
			User            string `json:"user"`
			ThreadTimestamp string `json:"thread_ts"`
		} `json:"event"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("slack: decode event body: %w", err)
	}
	if envelope.Type != "event_callback" || envelope.Event.Type != "message" {
		return nil, nil
	}
	if envelope.Event.BotID != "" {
		return nil, nil
	}
	if envelope.Event.Subtype != "" && envelope.Event.Subtype != "thread_broadcast" {
		return nil, nil
	}
	isThreadMessage := envelope.Event.ThreadTimestamp != ""
	var matched []*trigger.Trigger
	for _, t := range candidates {
		if t.TriggerType != "onMessage" {
			continue
		}
		var in struct {
			ChannelID             string `json:"channel_id"`
			UserID                string `json:"user_id"`
			IncludeThreadMessages bool   `json:"include_thread_messages"`
		}
		_ = json.Unmarshal(t.Input, &in)
		if in.ChannelID != "" && in.ChannelID != envelope.Event.Channel {
			continue
		}
		if in.UserID != "" && in.UserID != envelope.Event.User {
			continue
		}
		if isThreadMessage && !in.IncludeThreadMessages {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}

