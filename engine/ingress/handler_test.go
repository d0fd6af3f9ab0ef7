package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/runtime"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/webhook/foo/":    "/webhook/foo",
		"webhook/foo":      "/webhook/foo",
		"/webhook//":       "/webhook",
		"/":                "/",
		"  /webhook/bar  ": "/webhook/bar",
	}
	for in, want := range cases {
		t.Run("Should normalize "+in, func(t *testing.T) {
			assert.Equal(t, want, normalizePath(in))
		})
	}
}

type fakeHistoryStore struct {
	created chan *execution.History
}

func (f *fakeHistoryStore) Create(_ context.Context, workflowID, triggerID core.ID) (*execution.History, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	h := &execution.History{ID: id, WorkflowID: workflowID, TriggerID: triggerID, Status: execution.StatusReceived}
	if f.created != nil {
		f.created <- h
	}
	return h, nil
}
func (f *fakeHistoryStore) MarkStarted(context.Context, core.ID, core.ID) error { return nil }
func (f *fakeHistoryStore) MarkCompleted(context.Context, core.ID, []execution.LogEntry) error {
	return nil
}
func (f *fakeHistoryStore) MarkFailed(context.Context, core.ID, string, string, []execution.LogEntry) error {
	return nil
}
func (f *fakeHistoryStore) MarkNoDeployment(context.Context, core.ID) error { return nil }
func (f *fakeHistoryStore) Get(context.Context, core.ID) (*execution.History, error) {
	return nil, nil
}
func (f *fakeHistoryStore) List(context.Context, execution.ListFilter) ([]*execution.History, error) {
	return nil, nil
}

var _ execution.HistoryStore = (*fakeHistoryStore)(nil)

type fakeTriggerRegistry struct {
	webhooksByPath map[string]*trigger.IncomingWebhook
	triggers       map[core.ID]*trigger.Trigger
	byProvider     []*trigger.Trigger
}

func (f *fakeTriggerRegistry) ListByWorkflow(context.Context, core.ID) ([]*trigger.Trigger, error) {
	return nil, nil
}
func (f *fakeTriggerRegistry) ListByProvider(context.Context, string, string, core.ID) ([]*trigger.Trigger, error) {
	return f.byProvider, nil
}
func (f *fakeTriggerRegistry) Get(_ context.Context, id core.ID) (*trigger.Trigger, error) {
	t, ok := f.triggers[id]
	if !ok {
		return nil, assert.AnError
	}
	return t, nil
}
func (f *fakeTriggerRegistry) Create(context.Context, *trigger.Trigger) error     { return nil }
func (f *fakeTriggerRegistry) UpdateState(context.Context, core.ID, []byte) error { return nil }
func (f *fakeTriggerRegistry) Delete(context.Context, core.ID) error              { return nil }
func (f *fakeTriggerRegistry) FindWebhookByPath(_ context.Context, path string) (*trigger.IncomingWebhook, error) {
	h, ok := f.webhooksByPath[path]
	if !ok {
		return nil, assert.AnError
	}
	return h, nil
}
func (f *fakeTriggerRegistry) CreateWebhook(context.Context, *trigger.IncomingWebhook) error {
	return nil
}
func (f *fakeTriggerRegistry) FindProviderWebhook(context.Context, core.ID) (*trigger.IncomingWebhook, error) {
	return nil, nil
}
func (f *fakeTriggerRegistry) FindWebhookByTrigger(context.Context, core.ID) (*trigger.IncomingWebhook, error) {
	return nil, nil
}
func (f *fakeTriggerRegistry) CreateRecurringTask(context.Context, *trigger.RecurringTask) error {
	return nil
}
func (f *fakeTriggerRegistry) DeleteRecurringTask(context.Context, core.ID) error { return nil }
func (f *fakeTriggerRegistry) ListRecurringTasks(context.Context) ([]*trigger.RecurringTask, error) {
	return nil, nil
}
func (f *fakeTriggerRegistry) FindRecurringTaskByTrigger(context.Context, core.ID) (*trigger.RecurringTask, error) {
	return nil, nil
}
func (f *fakeTriggerRegistry) FindTriggerByScheduleID(context.Context, core.ID) (*trigger.Trigger, error) {
	return nil, nil
}

var _ trigger.Registry = (*fakeTriggerRegistry)(nil)

type fakeProviderRegistry struct {
	byID *provider.Provider
}

func (f *fakeProviderRegistry) Get(context.Context, core.ID, provider.Kind, string) (*provider.Provider, error) {
	return f.byID, nil
}
func (f *fakeProviderRegistry) GetByID(context.Context, core.ID) (*provider.Provider, error) {
	return f.byID, nil
}
func (f *fakeProviderRegistry) Create(context.Context, *provider.Provider) error { return nil }
func (f *fakeProviderRegistry) ListByNamespace(context.Context, core.ID) ([]*provider.Provider, error) {
	return nil, nil
}

var _ provider.Registry = (*fakeProviderRegistry)(nil)

type fakeWorkflowRegistry struct{}

func (fakeWorkflowRegistry) Get(context.Context, core.ID) (*workflow.Workflow, error) { return nil, nil }
func (fakeWorkflowRegistry) GetByName(context.Context, core.ID, string) (*workflow.Workflow, error) {
	return nil, nil
}
func (fakeWorkflowRegistry) LatestActiveDeployment(context.Context, core.ID) (*workflow.Deployment, error) {
	return nil, nil
}
func (fakeWorkflowRegistry) CreateDeployment(context.Context, *workflow.Deployment) error { return nil }
func (fakeWorkflowRegistry) ActivateDeployment(context.Context, core.ID) error            { return nil }

var _ workflow.Registry = (*fakeWorkflowRegistry)(nil)

type fakeRuntimeRegistry struct{}

func (fakeRuntimeRegistry) Get(context.Context, core.ID) (*runtime.Runtime, error) { return nil, nil }
func (fakeRuntimeRegistry) Upsert(context.Context, runtime.Config) (*runtime.Runtime, error) {
	return nil, nil
}
func (fakeRuntimeRegistry) UpdateStatus(context.Context, core.ID, runtime.Status, []runtime.LogEntry) error {
	return nil
}

var _ runtime.Registry = (*fakeRuntimeRegistry)(nil)

type fakeBackend struct{}

func (fakeBackend) CreateRuntime(context.Context, core.ID, runtime.Config) (runtime.Status, []runtime.LogEntry, error) {
	return runtime.Status(""), nil, nil
}
func (fakeBackend) GetRuntimeStatus(context.Context, core.ID) (runtime.Status, []runtime.LogEntry, error) {
	return runtime.Status(""), nil, nil
}
func (fakeBackend) InvokeTrigger(context.Context, core.ID, runtime.Config, runtime.InvokePayload) error {
	return nil
}

var _ runtime.Backend = (*fakeBackend)(nil)

func newTestState(t *testing.T, triggers *fakeTriggerRegistry, providers *fakeProviderRegistry, history *fakeHistoryStore) *appstate.State {
	t.Helper()
	box, err := secretbox.NewBox("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	signer := execution.NewJWTSigner("test-secret", 0)
	dispatcher := execution.NewDispatcher(
		history, fakeWorkflowRegistry{}, providers, fakeRuntimeRegistry{},
		fakeBackend{}, execution.StaticImageResolver{}, signer, box, "http://localhost",
	)
	return &appstate.State{
		Triggers:   triggers,
		Providers:  providers,
		History:    history,
		Dispatcher: dispatcher,
		Secrets:    box,
	}
}

func newTestRouter(state *appstate.State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(appstate.StateMiddleware(state))
	engine.Any("/webhook/*path", Handler)
	return engine
}

func TestHandler(t *testing.T) {
	t.Run("Should 404 for an unknown webhook path", func(t *testing.T) {
		state := newTestState(t, &fakeTriggerRegistry{webhooksByPath: map[string]*trigger.IncomingWebhook{}},
			&fakeProviderRegistry{}, &fakeHistoryStore{})
		router := newTestRouter(state)

		req := httptest.NewRequest(http.MethodPost, "/webhook/unknown", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should dispatch to a matching builtin webhook trigger", func(t *testing.T) {
		wfID, err := core.NewID()
		require.NoError(t, err)
		triggerID, err := core.NewID()
		require.NoError(t, err)
		nsID, err := core.NewID()
		require.NoError(t, err)
		providerID, err := core.NewID()
		require.NoError(t, err)

		tr := &trigger.Trigger{
			ID: triggerID, WorkflowID: wfID, NamespaceID: nsID,
			ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onWebhook",
		}
		hook := &trigger.IncomingWebhook{
			ID: providerID, Path: "/webhook/hooks/abc", Method: "POST",
			Owner: trigger.WebhookOwnerTrigger, TriggerID: &triggerID,
		}
		prov := &provider.Provider{ID: providerID, NamespaceID: nsID, Type: provider.KindBuiltin, Alias: "default"}

		created := make(chan *execution.History, 1)
		history := &fakeHistoryStore{created: created}
		state := newTestState(t,
			&fakeTriggerRegistry{
				webhooksByPath: map[string]*trigger.IncomingWebhook{"/webhook/hooks/abc": hook},
				triggers:       map[core.ID]*trigger.Trigger{triggerID: tr},
			},
			&fakeProviderRegistry{byID: prov},
			history,
		)
		router := newTestRouter(state)

		req := httptest.NewRequest(http.MethodPost, "/webhook/hooks/abc", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		data := resp["data"].(map[string]any)
		assert.Equal(t, wfID.String(), data["workflow_id"])

		select {
		case h := <-created:
			assert.Equal(t, triggerID, h.TriggerID)
		case <-time.After(time.Second):
			t.Fatal("expected a history row to have been created by the dispatch goroutine")
		}
	})

	t.Run("Should answer no active deployment when no trigger owns the webhook path's provider", func(t *testing.T) {
		nsID, err := core.NewID()
		require.NoError(t, err)
		providerID, err := core.NewID()
		require.NoError(t, err)
		hook := &trigger.IncomingWebhook{
			ID: providerID, Path: "/webhook/hooks/slack", Method: "POST",
			Owner: trigger.WebhookOwnerProvider, ProviderID: &providerID,
		}
		prov := &provider.Provider{ID: providerID, NamespaceID: nsID, Type: provider.KindSlack, Alias: "team"}
		state := newTestState(t,
			&fakeTriggerRegistry{
				webhooksByPath: map[string]*trigger.IncomingWebhook{"/webhook/hooks/slack": hook},
				byProvider:     nil,
			},
			&fakeProviderRegistry{byID: prov},
			&fakeHistoryStore{},
		)
		router := newTestRouter(state)

		req := httptest.NewRequest(http.MethodPost, "/webhook/hooks/slack", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "No active deployment found, only sent to dev mode.", resp["message"])
	})
}
