package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hookflow/hookflow/engine/trigger"
)

// discordAdapter backs the "discord" provider type. Discord interactions
// webhooks share a single provider-owned URL; gateway-event dispatch types
// map to our onMessage/onReaction/onMemberJoin/onMemberLeave/onMemberUpdate
// trigger types (spec.md §4.4 table).
type discordAdapter struct{}

func newDiscordAdapter() Adapter { return &discordAdapter{} }

func (a *discordAdapter) Kind() Kind { return KindDiscord }

func (a *discordAdapter) Create(ctx context.Context, _ Config, _ string, _ json.RawMessage, utils Utils) ([]byte, error) {
	ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{
		Owner:         trigger.WebhookOwnerProvider,
		ReuseExisting: true,
	})
	if err != nil {
		return nil, fmt.Errorf("discord: register webhook: %w", err)
	}
	return json.Marshal(map[string]string{"webhook_id": ref.ID})
}

func (a *discordAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *discordAdapter) Destroy(context.Context, Config, string, json.RawMessage, []byte, Utils) error {
	return nil
}

// ValidateWebhook answers Discord's interaction PING (type=1) used to
// verify the endpoint URL.
func (a *discordAdapter) ValidateWebhook(_ context.Context, req *WebhookRequest, _ Config) (*WebhookResponse, error) {
	var envelope struct {
		Type int `json:"type"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, nil //nolint:nilerr // malformed body: let ProcessWebhook handle/reject it
	}
	if envelope.Type == 1 {
		return &WebhookResponse{StatusCode: http.StatusOK, Body: map[string]int{"type": 1}}, nil
	}
	return nil, nil
}

var discordDispatchToTriggerType = map[string]string{
	"MESSAGE_CREATE":        "onMessage",
	"MESSAGE_UPDATE":        "onMessage",
	"MESSAGE_REACTION_ADD":  "onReaction",
	"GUILD_MEMBER_ADD":      "onMemberJoin",
	"GUILD_MEMBER_REMOVE":   "onMemberLeave",
	"GUILD_MEMBER_UPDATE":   "onMemberUpdate",
}

func (a *discordAdapter) ProcessWebhook(
	_ context.Context,
	req *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	var envelope struct {
		T string `json:"t"`
		D struct {
			GuildID   string `json:"guild_id"`
			ChannelID string `json:"channel_id"`
			Author    struct {
				ID  string `json:"id"`
				Bot bool   `json:"bot"`
			} `json:"author"`
			EditedTimestamp string `json:"edited_timestamp"`
			Emoji           struct {
				Name string `json:"name"`
			} `json:"emoji"`
			UserID string `json:"user_id"`
		} `json:"d"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("discord: decode dispatch body: %w", err)
	}
	triggerType, ok := discordDispatchToTriggerType[envelope.T]
	if !ok {
		return nil, nil
	}
	isEdit := envelope.T == "MESSAGE_UPDATE"
	var matched []*trigger.Trigger
	for _, t := range candidates {
		if t.TriggerType != triggerType {
			continue
		}
		var in struct {
			GuildID       string `json:"guild_id"`
			ChannelID     string `json:"channel_id"`
			UserID        string `json:"user_id"`
			Emoji         string `json:"emoji"`
			IncludeBots   bool   `json:"include_bots"`
			IncludeEdits  bool   `json:"include_edits"`
		}
		_ = json.Unmarshal(t.Input, &in)
		if envelope.D.Author.Bot && !in.IncludeBots {
			continue
		}
		if isEdit && !in.IncludeEdits {
			continue
		}
		if in.GuildID != "" && in.GuildID != envelope.D.GuildID {
			continue
		}
		if in.ChannelID != "" && in.ChannelID != envelope.D.ChannelID {
			continue
		}
		user := envelope.D.Author.ID
		if user == "" {
			user = envelope.D.UserID
		}
		if in.UserID != "" && in.UserID != user {
			continue
		}
		if in.Emoji != "" && in.Emoji != envelope.D.Emoji.Name {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}
