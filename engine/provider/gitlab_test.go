package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitLabAdapter_ProcessWebhook(t *testing.T) {
	a := newGitLabAdapter()
	candidates := []*trigger.Trigger{
		{TriggerType: "onPush", Input: json.RawMessage(`{"projectId": "100"}`)},
		{TriggerType: "onPush", Input: json.RawMessage(`{"projectId": "200"}`)},
		{TriggerType: "onIssue", Input: json.RawMessage(`{"projectId": "100"}`)},
	}

	t.Run("Should match only the trigger scoped to the event's project", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{"event_type": "push", "project": {"id": 100}}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, candidates[0], matched[0])
	})

	t.Run("Should match a project-unscoped trigger against any project", func(t *testing.T) {
		unscoped := []*trigger.Trigger{{TriggerType: "onPush", Input: json.RawMessage(`{}`)}}
		req := &WebhookRequest{Body: []byte(`{"event_type": "push", "project": {"id": 999}}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, unscoped)
		require.NoError(t, err)
		assert.Len(t, matched, 1)
	})

	t.Run("Should match on groupId when declared", func(t *testing.T) {
		grouped := []*trigger.Trigger{{TriggerType: "onPush", Input: json.RawMessage(`{"groupId": "55"}`)}}
		req := &WebhookRequest{Body: []byte(`{"event_type": "push", "group_id": 55}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, grouped)
		require.NoError(t, err)
		assert.Len(t, matched, 1)
	})

	t.Run("Should map a note event to onMergeRequestComment (S1)", func(t *testing.T) {
		scoped := []*trigger.Trigger{{TriggerType: "onMergeRequestComment", Input: json.RawMessage(`{"projectId": "123456"}`)}}
		req := &WebhookRequest{Body: []byte(`{"event_type": "note", "project": {"id": 123456}}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, scoped)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, "onMergeRequestComment", matched[0].TriggerType)
	})

	t.Run("Should return no matches for an unrelated event type", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{"event_type": "merge_request", "project": {"id": 100}}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should return no matches for an event_type with no mapping", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{"event_type": "wiki_page", "project": {"id": 100}}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should error on a malformed body", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`not json`)}
		_, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		assert.Error(t, err)
	})
}

func TestGitLabAdapter_ValidateWebhook(t *testing.T) {
	t.Run("Should never short-circuit (GitLab has no handshake)", func(t *testing.T) {
		a := newGitLabAdapter()
		resp, err := a.ValidateWebhook(context.Background(), &WebhookRequest{}, nil)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}
