package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hookflow/hookflow/engine/trigger"
)

// gitLabAdapter backs the "gitlab" provider type. Reconcile registers a
// project hook on GitLab pointing at our IncomingWebhook URL; match maps
// the webhook body's event_type to candidates filtered on projectId/
// groupId (spec.md §4.4 table).
type gitLabAdapter struct{}

func newGitLabAdapter() Adapter { return &gitLabAdapter{} }

func (a *gitLabAdapter) Kind() Kind { return KindGitLab }

type gitlabState struct {
	WebhookID  string `json:"webhook_id"`
	HookID     int    `json:"hook_id"`
	WebhookURL string `json:"webhook_url"`
}

func (a *gitLabAdapter) restClient(cfg Config) *resty.Client {
	baseURL, _ := cfg["base_url"].(string)
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	token, _ := cfg["token"].(string)
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("PRIVATE-TOKEN", token).
		SetTimeout(10 * time.Second)
}

func (a *gitLabAdapter) Create(
	ctx context.Context,
	cfg Config,
	triggerType string,
	input json.RawMessage,
	utils Utils,
) ([]byte, error) {
	var in struct {
		ProjectID string `json:"projectId"`
	}
	_ = json.Unmarshal(input, &in)
	ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{Owner: trigger.WebhookOwnerTrigger})
	if err != nil {
		return nil, fmt.Errorf("gitlab: register webhook: %w", err)
	}
	var body struct {
		ID int `json:"id"`
	}
	resp, err := a.restClient(cfg).R().
		SetContext(ctx).
		SetBody(map[string]any{"url": ref.URL, "push_events": true, "issues_events": true}).
		SetResult(&body).
		Post(fmt.Sprintf("/api/v4/projects/%s/hooks", in.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("gitlab: create project hook: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitlab: create project hook: status %d", resp.StatusCode())
	}
	return json.Marshal(gitlabState{WebhookID: ref.ID, HookID: body.ID, WebhookURL: ref.URL})
}

func (a *gitLabAdapter) Refresh(
	ctx context.Context,
	cfg Config,
	_ string,
	input json.RawMessage,
	state []byte,
) ([]byte, error) {
	var st gitlabState
	if err := json.Unmarshal(state, &st); err != nil {
		return state, fmt.Errorf("gitlab: decode state: %w", err)
	}
	var in struct {
		ProjectID string `json:"projectId"`
	}
	_ = json.Unmarshal(input, &in)
	resp, err := a.restClient(cfg).R().SetContext(ctx).
		Get(fmt.Sprintf("/api/v4/projects/%s/hooks/%d", in.ProjectID, st.HookID))
	if err != nil {
		return state, fmt.Errorf("gitlab: refresh project hook: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		// external artifact gone; caller's reconcile treats this as a
		// create-again on next pass by returning an error.
		return state, fmt.Errorf("gitlab: project hook %d not found", st.HookID)
	}
	return state, nil
}

func (a *gitLabAdapter) Destroy(
	ctx context.Context,
	cfg Config,
	_ string,
	input json.RawMessage,
	state []byte,
	utils Utils,
) error {
	var st gitlabState
	_ = json.Unmarshal(state, &st)
	var in struct {
		ProjectID string `json:"projectId"`
	}
	_ = json.Unmarshal(input, &in)
	if st.HookID != 0 && in.ProjectID != "" {
		resp, err := a.restClient(cfg).R().SetContext(ctx).
			Delete(fmt.Sprintf("/api/v4/projects/%s/hooks/%d", in.ProjectID, st.HookID))
		if err != nil {
			return fmt.Errorf("gitlab: delete project hook: %w", err)
		}
		if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
			return fmt.Errorf("gitlab: delete project hook: status %d", resp.StatusCode())
		}
	}
	_ = utils.UnregisterRecurringTask(ctx)
	return nil
}

func (a *gitLabAdapter) ValidateWebhook(context.Context, *WebhookRequest, Config) (*WebhookResponse, error) {
	return nil, nil
}

// gitlabEventToTriggerType maps GitLab's webhook body event_type to our
// trigger_type discriminator (spec.md §4.4 table), the same shape as
// jiraEventToTriggerType.
var gitlabEventToTriggerType = map[string]string{
	"push":          "onPush",
	"tag_push":      "onTagPush",
	"merge_request": "onMergeRequest",
	"note":          "onMergeRequestComment",
	"issue":         "onIssue",
	"pipeline":      "onPipeline",
}

func (a *gitLabAdapter) ProcessWebhook(
	_ context.Context,
	req *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	var envelope struct {
		EventType string `json:"event_type"`
		Project   struct {
			ID int `json:"id"`
		} `json:"project"`
		GroupID int `json:"group_id"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("gitlab: decode webhook body: %w", err)
	}
	triggerType, ok := gitlabEventToTriggerType[envelope.EventType]
	if !ok {
		return nil, nil
	}
	var matched []*trigger.Trigger
	for _, t := range candidates {
		if t.TriggerType != triggerType {
			continue
		}
		var in struct {
			ProjectID string `json:"projectId"`
			GroupID   string `json:"groupId"`
		}
		_ = json.Unmarshal(t.Input, &in)
		if in.ProjectID != "" && in.ProjectID != fmt.Sprintf("%d", envelope.Project.ID) {
			continue
		}
		if in.GroupID != "" && in.GroupID != fmt.Sprintf("%d", envelope.GroupID) {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}
