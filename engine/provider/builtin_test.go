package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUtils struct {
	webhookRef   *WebhookRef
	recurringRef *RecurringTaskRef
	unregistered bool
	registerErr  error
	recurringErr error
	lastOpts     RegisterWebhookOptions
}

func (f *fakeUtils) RegisterWebhook(_ context.Context, opts RegisterWebhookOptions) (*WebhookRef, error) {
	f.lastOpts = opts
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.webhookRef, nil
}

func (f *fakeUtils) RegisterRecurringTask(context.Context, RegisterRecurringTaskOptions) (*RecurringTaskRef, error) {
	if f.recurringErr != nil {
		return nil, f.recurringErr
	}
	return f.recurringRef, nil
}

func (f *fakeUtils) UnregisterRecurringTask(context.Context) error {
	f.unregistered = true
	return nil
}

var _ Utils = (*fakeUtils)(nil)

func TestBuiltinAdapter_Create(t *testing.T) {
	a := newBuiltinAdapter()

	t.Run("Should register a webhook for onWebhook triggers", func(t *testing.T) {
		utils := &fakeUtils{webhookRef: &WebhookRef{ID: "wh1", Path: "/hooks/wh1"}}
		state, err := a.Create(context.Background(), nil, "onWebhook", nil, utils)
		require.NoError(t, err)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(state, &decoded))
		assert.Equal(t, "wh1", decoded["webhook_id"])
	})

	t.Run("Should pass a caller-supplied custom path through to RegisterWebhook", func(t *testing.T) {
		utils := &fakeUtils{webhookRef: &WebhookRef{ID: "wh2", Path: "/hooks/custom"}}
		input := json.RawMessage(`{"path": "/custom"}`)
		_, err := a.Create(context.Background(), nil, "onWebhook", input, utils)
		require.NoError(t, err)
		assert.Equal(t, "/custom", utils.lastOpts.Path)
	})

	t.Run("Should register a recurring task for onCron triggers", func(t *testing.T) {
		utils := &fakeUtils{recurringRef: &RecurringTaskRef{ID: "rt1"}}
		input := json.RawMessage(`{"cronExpression": "*/5 * * * *"}`)
		state, err := a.Create(context.Background(), nil, "onCron", input, utils)
		require.NoError(t, err)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(state, &decoded))
		assert.Equal(t, "rt1", decoded["recurring_task_id"])
	})

	t.Run("Should return nil state for an unknown trigger type", func(t *testing.T) {
		state, err := a.Create(context.Background(), nil, "onSomethingElse", nil, &fakeUtils{})
		require.NoError(t, err)
		assert.Nil(t, state)
	})
}

func TestBuiltinAdapter_Destroy(t *testing.T) {
	a := newBuiltinAdapter()

	t.Run("Should unregister the recurring task for onCron triggers", func(t *testing.T) {
		utils := &fakeUtils{}
		err := a.Destroy(context.Background(), nil, "onCron", nil, nil, utils)
		require.NoError(t, err)
		assert.True(t, utils.unregistered)
	})

	t.Run("Should no-op for onWebhook triggers", func(t *testing.T) {
		utils := &fakeUtils{}
		err := a.Destroy(context.Background(), nil, "onWebhook", nil, nil, utils)
		require.NoError(t, err)
		assert.False(t, utils.unregistered)
	})
}

func TestDefaultMatcher(t *testing.T) {
	t.Run("Should pass every candidate through unfiltered", func(t *testing.T) {
		var m DefaultMatcher
		resp, err := m.ValidateWebhook(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}
