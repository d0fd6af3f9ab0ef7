package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubAdapter_ProcessWebhook(t *testing.T) {
	a := newGitHubAdapter()
	body := []byte(`{"repository":{"name":"repo","full_name":"acme/repo","owner":{"login":"acme"}},"action":"opened"}`)

	t.Run("Should drop ping events", func(t *testing.T) {
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"ping"}}, Body: body}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should map pull_request to onPullRequest and match owner/repo", func(t *testing.T) {
		candidates := []*trigger.Trigger{
			{TriggerType: "onPullRequest", Input: json.RawMessage(`{"owner":"acme","repository":"repo"}`)},
		}
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"pull_request"}}, Body: body}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		require.Len(t, matched, 1)
	})

	t.Run("Should match when the event's action is a member of actions[]", func(t *testing.T) {
		candidates := []*trigger.Trigger{
			{TriggerType: "onPullRequest", Input: json.RawMessage(`{"actions":["opened","reopened"]}`)},
		}
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"pull_request"}}, Body: body}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Len(t, matched, 1)
	})

	t.Run("Should drop the event when actions[] excludes the event's action", func(t *testing.T) {
		candidates := []*trigger.Trigger{
			{TriggerType: "onPullRequest", Input: json.RawMessage(`{"actions":["closed"]}`)},
		}
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"pull_request"}}, Body: body}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should return no matches for an event with no trigger_type mapping", func(t *testing.T) {
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"star"}}, Body: body}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should error on a malformed body", func(t *testing.T) {
		req := &WebhookRequest{Headers: http.Header{"X-Github-Event": []string{"push"}}, Body: []byte("not json")}
		_, err := a.ProcessWebhook(context.Background(), req, nil, nil)
		assert.Error(t, err)
	})
}

func TestActionMatches(t *testing.T) {
	t.Run("Should report true when action is a member of actions", func(t *testing.T) {
		ok, err := actionMatches([]string{"opened", "edited"}, "opened")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should report false when action is absent", func(t *testing.T) {
		ok, err := actionMatches([]string{"closed"}, "opened")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
