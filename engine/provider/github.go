package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/go-github/v74/github"
	"github.com/hookflow/hookflow/engine/trigger"
)

// actionsMembershipEnv compiles "action in actions" once; every trigger's
// actions[] filter reuses the same program with different bindings rather
// than hand-rolling a membership scan (spec.md §4.10).
var actionsMembershipEnv = func() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("actions", cel.ListType(cel.StringType)),
	)
	if err != nil {
		panic(fmt.Sprintf("github: build cel env: %v", err))
	}
	return env
}()

// actionMatches reports whether action is a member of actions, compiled
// and evaluated via cel-go instead of a hand-rolled loop.
func actionMatches(actions []string, action string) (bool, error) {
	ast, iss := actionsMembershipEnv.Compile("action in actions")
	if iss != nil && iss.Err() != nil {
		return false, fmt.Errorf("github: compile actions filter: %w", iss.Err())
	}
	prg, err := actionsMembershipEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("github: build actions filter program: %w", err)
	}
	out, _, err := prg.Eval(map[string]any{"action": action, "actions": actions})
	if err != nil {
		return false, fmt.Errorf("github: eval actions filter: %w", err)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// gitHubAdapter backs the "github" provider type, using google/go-github
// to manage a repository webhook.
type gitHubAdapter struct{}

func newGitHubAdapter() Adapter { return &gitHubAdapter{} }

func (a *gitHubAdapter) Kind() Kind { return KindGitHub }

type githubState struct {
	WebhookID int64  `json:"webhook_id"`
	HookID    int64  `json:"hook_id"`
	WebhookURL string `json:"webhook_url"`
}

func (a *gitHubAdapter) client(cfg Config) *github.Client {
	token, _ := cfg["token"].(string)
	return github.NewClient(nil).WithAuthToken(token)
}

func splitOwnerRepo(input json.RawMessage) (owner, repo string) {
	var in struct {
		Owner      string `json:"owner"`
		Repository string `json:"repository"`
	}
	_ = json.Unmarshal(input, &in)
	if strings.Contains(in.Repository, "/") {
		parts := strings.SplitN(in.Repository, "/", 2)
		return parts[0], parts[1]
	}
	return in.Owner, in.Repository
}

func (a *gitHubAdapter) Create(
	ctx context.Context,
	cfg Config,
	_ string,
	input json.RawMessage,
	utils Utils,
) ([]byte, error) {
	owner, repo := splitOwnerRepo(input)
	ref, err := utils.RegisterWebhook(ctx, RegisterWebhookOptions{Owner: trigger.WebhookOwnerProvider, ReuseExisting: true})
	if err != nil {
		return nil, fmt.Errorf("github: register webhook: %w", err)
	}
	hook := &github.Hook{
		Config: &github.HookConfig{URL: &ref.URL, ContentType: github.Ptr("json")},
		Events: []string{"push", "pull_request", "issues", "issue_comment", "release"},
	}
	created, _, err := a.client(cfg).Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return nil, fmt.Errorf("github: create repo hook: %w", err)
	}
	return json.Marshal(githubState{WebhookID: created.GetID(), HookID: created.GetID(), WebhookURL: ref.URL})
}

func (a *gitHubAdapter) Refresh(
	ctx context.Context,
	cfg Config,
	_ string,
	input json.RawMessage,
	state []byte,
) ([]byte, error) {
	var st githubState
	_ = json.Unmarshal(state, &st)
	owner, repo := splitOwnerRepo(input)
	_, resp, err := a.client(cfg).Repositories.GetHook(ctx, owner, repo, st.HookID)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return state, fmt.Errorf("github: repo hook %d not found", st.HookID)
		}
		return state, fmt.Errorf("github: get repo hook: %w", err)
	}
	return state, nil
}

func (a *gitHubAdapter) Destroy(
	ctx context.Context,
	cfg Config,
	_ string,
	input json.RawMessage,
	state []byte,
	_ Utils,
) error {
	var st githubState
	_ = json.Unmarshal(state, &st)
	if st.HookID == 0 {
		return nil
	}
	owner, repo := splitOwnerRepo(input)
	resp, err := a.client(cfg).Repositories.DeleteHook(ctx, owner, repo, st.HookID)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("github: delete repo hook: %w", err)
	}
	return nil
}

func (a *gitHubAdapter) ValidateWebhook(context.Context, *WebhookRequest, Config) (*WebhookResponse, error) {
	return nil, nil
}

func (a *gitHubAdapter) ProcessWebhook(
	_ context.Context,
	req *WebhookRequest,
	_ Config,
	candidates []*trigger.Trigger,
) ([]*trigger.Trigger, error) {
	event := req.Headers.Get("X-GitHub-Event")
	if event == "" || event == "ping" {
		return nil, nil
	}
	triggerType, ok := map[string]string{
		"push":           "onPush",
		"pull_request":   "onPullRequest",
		"issues":         "onIssue",
		"issue_comment":  "onIssueComment",
		"release":        "onRelease",
	}[event]
	if !ok {
		return nil, nil
	}
	var envelope struct {
		Repository struct {
			Name     string `json:"name"`
			FullName string `json:"full_name"`
			Owner    struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repository"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("github: decode event body: %w", err)
	}
	var matched []*trigger.Trigger
	for _, t := range candidates {
		if t.TriggerType != triggerType {
			continue
		}
		var in struct {
			Owner      string   `json:"owner"`
			Repository string   `json:"repository"`
			Actions    []string `json:"actions"`
		}
		_ = json.Unmarshal(t.Input, &in)
		if in.Owner != "" && in.Owner != envelope.Repository.Owner.Login {
			continue
		}
		if in.Repository != "" && in.Repository != envelope.Repository.Name {
			continue
		}
		if len(in.Actions) > 0 {
			ok, err := actionMatches(in.Actions, envelope.Action)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, t)
	}
	return matched, nil
}
