package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hookflow/hookflow/engine/trigger"
)

// jiraAdapter backs the "jira" provider type. Jira webhooks are configured
// per-site in the Jira admin console pointing at our provider-owned URL;
// this adapter only manages that IncomingWebhook row and maps
// webhookEvent → trigger_type (spec.md §4.4 table).
type jiraAdapter struct{}

func newJiraAdapter() Adapter { return &jiraAdapter{} }

func (a *jiraAdapter) Kind() Kind { return KindJira }

func (a *jiraAdapter) Create(ctx context.Context, _ Config, _ string, _ json.RawMessage, utils Utils) ([]byte, error) {
	ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{
		Owner:         trigger.WebhookOwnerProvider,
		ReuseExisting: true,
	})
	if err != nil {
		return nil, fmt.Errorf("jira: register webhook: %w", err)
	}
	return json.Marshal(map[string]string{"webhook_id": ref.ID})
}

func (a *jiraAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *jiraAdapter) Destroy(context.Context, Config, string, json.RawMessage, []byte, Utils) error {
	return nil
}

func (a *jiraAdapter) ValidateWebhook(context.Context, *WebhookRequest, Config) (*WebhookResponse, error) {
	return nil, nil
}

var jiraEventToTriggerType = map[string]string{
	"jira:issue_created":    "onIssueCreated",
	"jira:issue_updated":    "onIssueUpdated",
	"comment_created":       "onCommentAdded",
}

func (a *jiraAdapter) ProcessWebhook(
	_ context.Context,
	req *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	var envelope struct {
		WebhookEvent string `json:"webhookEvent"`
		Issue        struct {
			Fields struct {
				Project struct {
					Key string `json:"key"`
				} `json:"project"`
				IssueType struct {
					Name string `json:"name"`
				} `json:"issuetype"`
			} `json:"fields"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("jira: decode event body: %w", err)
	}
	triggerType, ok := jiraEventToTriggerType[envelope.WebhookEvent]
	if !ok {
		return nil, nil
	}
	var matched []*trigger.Trigger
	for _, t := range candidates {
		if t.TriggerType != triggerType {
			continue
		}
		var in struct {
			ProjectKey string `json:"project_key"`
			IssueType  string `json:"issue_type"`
		}
		_ = json.Unmarshal(t.Input, &in)
		if in.ProjectKey != "" && in.ProjectKey != envelope.Issue.Fields.Project.Key {
			continue
		}
		if in.IssueType != "" && in.IssueType != envelope.Issue.Fields.IssueType.Name {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}
