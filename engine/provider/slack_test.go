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

func TestSlackAdapter_ValidateWebhook(t *testing.T) {
	a := newSlackAdapter()

	t.Run("Should answer the url_verification handshake", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{"type": "url_verification", "challenge": "abc123"}`)}
		resp, err := a.ValidateWebhook(context.Background(), req, nil)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]string{"challenge": "abc123"}, resp.Body)
	})

	t.Run("Should pass through any other event type", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{"type": "event_callback"}`)}
		resp, err := a.ValidateWebhook(context.Background(), req, nil)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestSlackAdapter_ProcessWebhook(t *testing.T) {
	a := newSlackAdapter()
	candidates := []*trigger.Trigger{
		{TriggerType: "onMessage", Input: json.RawMessage(`{"channel_id": "C1"}`)},
		{TriggerType: "onMessage", Input: json.RawMessage(`{"channel_id": "C2"}`)},
		{TriggerType: "onMention", Input: json.RawMessage(`{}`)},
	}

	t.Run("Should match onMessage triggers scoped to the event's channel", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{
			"type": "event_callback",
			"event": {"type": "message", "channel": "C1", "user": "U1"}
		}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, candidates[0], matched[0])
	})

	t.Run("Should ignore bot messages", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{
			"type": "event_callback",
			"event": {"type": "message", "channel": "C1", "bot_id": "B1"}
		}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should ignore non-message event types", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{
			"type": "event_callback",
			"event": {"type": "reaction_added", "channel": "C1"}
		}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should exclude thread replies from triggers that don't opt in", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`{
			"type": "event_callback",
			"event": {"type": "message", "channel": "C1", "thread_ts": "123.45"}
		}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("Should include thread replies for triggers opting in", func(t *testing.T) {
		opted := []*trigger.Trigger{
			{TriggerType: "onMessage", Input: json.RawMessage(`{"channel_id": "C1", "include_thread_messages": true}`)},
		}
		req := &WebhookRequest{Body: []byte(`{
			"type": "event_callback",
			"event": {"type": "message", "channel": "C1", "thread_ts": "123.45"}
		}`)}
		matched, err := a.ProcessWebhook(context.Background(), req, nil, opted)
		require.NoError(t, err)
		assert.Len(t, matched, 1)
	})

	t.Run("Should error on a malformed body", func(t *testing.T) {
		req := &WebhookRequest{Body: []byte(`not json`)}
		_, err := a.ProcessWebhook(context.Background(), req, nil, candidates)
		assert.Error(t, err)
	})
}
