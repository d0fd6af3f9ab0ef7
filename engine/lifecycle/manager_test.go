package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("lifecycle test double: not found")

// memTriggerRegistry is an in-memory trigger.Registry test double.
type memTriggerRegistry struct {
	mu       sync.Mutex
	triggers map[core.ID]*trigger.Trigger
	webhooks map[core.ID]*trigger.IncomingWebhook
	recTasks map[core.ID]*trigger.RecurringTask
}

func newMemTriggerRegistry() *memTriggerRegistry {
	return &memTriggerRegistry{
		triggers: make(map[core.ID]*trigger.Trigger),
		webhooks: make(map[core.ID]*trigger.IncomingWebhook),
		recTasks: make(map[core.ID]*trigger.RecurringTask),
	}
}

func (m *memTriggerRegistry) ListByWorkflow(_ context.Context, workflowID core.ID) ([]*trigger.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*trigger.Trigger
	for _, t := range m.triggers {
		if t.WorkflowID == workflowID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTriggerRegistry) ListByProvider(context.Context, string, string, core.ID) ([]*trigger.Trigger, error) {
	return nil, nil
}

func (m *memTriggerRegistry) Get(_ context.Context, id core.ID) (*trigger.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	if !ok {
		return nil, errNotFound
	}
	return t, nil
}

func (m *memTriggerRegistry) Create(_ context.Context, t *trigger.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = core.MustNewID()
	}
	cp := *t
	m.triggers[t.ID] = &cp
	return nil
}

func (m *memTriggerRegistry) UpdateState(_ context.Context, id core.ID, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.triggers[id]; ok {
		t.State = state
	}
	return nil
}

func (m *memTriggerRegistry) Delete(_ context.Context, id core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.triggers, id)
	return nil
}

func (m *memTriggerRegistry) FindWebhookByPath(context.Context, string) (*trigger.IncomingWebhook, error) {
	return nil, nil
}

func (m *memTriggerRegistry) CreateWebhook(_ context.Context, w *trigger.IncomingWebhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = core.MustNewID()
	}
	cp := *w
	m.webhooks[w.ID] = &cp
	return nil
}

func (m *memTriggerRegistry) FindProviderWebhook(_ context.Context, providerID core.ID) (*trigger.IncomingWebhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.webhooks {
		if w.ProviderID != nil && *w.ProviderID == providerID {
			return w, nil
		}
	}
	return nil, nil
}

func (m *memTriggerRegistry) FindWebhookByTrigger(_ context.Context, triggerID core.ID) (*trigger.IncomingWebhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.webhooks {
		if w.TriggerID != nil && *w.TriggerID == triggerID {
			return w, nil
		}
	}
	return nil, nil
}

func (m *memTriggerRegistry) CreateRecurringTask(_ context.Context, rt *trigger.RecurringTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt.ID.IsZero() {
		rt.ID = core.MustNewID()
	}
	cp := *rt
	m.recTasks[rt.ID] = &cp
	return nil
}

func (m *memTriggerRegistry) DeleteRecurringTask(_ context.Context, triggerID core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rt := range m.recTasks {
		if rt.TriggerID == triggerID {
			delete(m.recTasks, id)
		}
	}
	return nil
}

func (m *memTriggerRegistry) ListRecurringTasks(_ context.Context) ([]*trigger.RecurringTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*trigger.RecurringTask
	for _, rt := range m.recTasks {
		out = append(out, rt)
	}
	return out, nil
}

func (m *memTriggerRegistry) FindRecurringTaskByTrigger(_ context.Context, triggerID core.ID) (*trigger.RecurringTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.recTasks {
		if rt.TriggerID == triggerID {
			return rt, nil
		}
	}
	return nil, errNotFound
}

func (m *memTriggerRegistry) FindTriggerByScheduleID(_ context.Context, recurringTaskID core.ID) (*trigger.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.recTasks[recurringTaskID]
	if !ok {
		return nil, errNotFound
	}
	return m.triggers[rt.TriggerID], nil
}

var _ trigger.Registry = (*memTriggerRegistry)(nil)

// memProviderRegistry is an in-memory provider.Registry test double.
type memProviderRegistry struct {
	mu        sync.Mutex
	providers map[string]*provider.Provider
}

func newMemProviderRegistry() *memProviderRegistry {
	return &memProviderRegistry{providers: make(map[string]*provider.Provider)}
}

func providerKey(namespaceID core.ID, kind provider.Kind, alias string) string {
	return namespaceID.String() + "|" + string(kind) + "|" + alias
}

func (m *memProviderRegistry) Get(_ context.Context, namespaceID core.ID, kind provider.Kind, alias string) (*provider.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[providerKey(namespaceID, kind, alias)]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (m *memProviderRegistry) Create(_ context.Context, p *provider.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = core.MustNewID()
	}
	m.providers[providerKey(p.NamespaceID, p.Type, p.Alias)] = p
	return nil
}

func (m *memProviderRegistry) ListByNamespace(_ context.Context, namespaceID core.ID) ([]*provider.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*provider.Provider
	for _, p := range m.providers {
		if p.NamespaceID == namespaceID {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ provider.Registry = (*memProviderRegistry)(nil)

// memWorkflowRegistry is an in-memory workflow.Registry test double; only
// LatestActiveDeployment is exercised by lifecycle tests.
type memWorkflowRegistry struct {
	deployment *workflow.Deployment
}

func (m *memWorkflowRegistry) Get(context.Context, core.ID) (*workflow.Workflow, error) { return nil, nil }
func (m *memWorkflowRegistry) GetByName(context.Context, core.ID, string) (*workflow.Workflow, error) {
	return nil, nil
}
func (m *memWorkflowRegistry) LatestActiveDeployment(context.Context, core.ID) (*workflow.Deployment, error) {
	return m.deployment, nil
}
func (m *memWorkflowRegistry) CreateDeployment(context.Context, *workflow.Deployment) error { return nil }
func (m *memWorkflowRegistry) ActivateDeployment(context.Context, core.ID) error             { return nil }

var _ workflow.Registry = (*memWorkflowRegistry)(nil)

// memSchedulerStore is an in-memory scheduler.Store test double.
type memSchedulerStore struct {
	mu   sync.Mutex
	jobs map[string]*scheduler.Job
}

func newMemSchedulerStore() *memSchedulerStore {
	return &memSchedulerStore{jobs: make(map[string]*scheduler.Job)}
}

func (s *memSchedulerStore) UpsertJob(_ context.Context, job *scheduler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memSchedulerStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memSchedulerStore) ListJobs(_ context.Context) ([]*scheduler.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*scheduler.Job
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (s *memSchedulerStore) GetJob(_ context.Context, id string) (*scheduler.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errNotFound
	}
	return j, nil
}

var _ scheduler.Store = (*memSchedulerStore)(nil)

func newTestManager(t *testing.T, triggers *memTriggerRegistry, providers *memProviderRegistry, deployment *workflow.Deployment) *Manager {
	t.Helper()
	key, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.NewBox(key)
	require.NoError(t, err)
	sched := scheduler.New(newMemSchedulerStore(), func(context.Context, string) {})
	return New(triggers, providers, &memWorkflowRegistry{deployment: deployment}, sched, box, "https://hooks.example.com")
}

func TestManager_Sync(t *testing.T) {
	t.Run("Should auto-create a no-setup provider and create a builtin webhook trigger", func(t *testing.T) {
		triggers := newMemTriggerRegistry()
		providers := newMemProviderRegistry()
		mgr := newTestManager(t, triggers, providers, nil)

		namespaceID := core.MustNewID()
		workflowID := core.MustNewID()
		desired := []DesiredTrigger{
			{ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onWebhook", Input: json.RawMessage(`{}`)},
		}

		webhooks, err := mgr.Sync(t.Context(), workflowID, namespaceID, desired)

		require.NoError(t, err)
		_, providerExists := providers.providers[providerKey(namespaceID, provider.KindBuiltin, "default")]
		assert.True(t, providerExists)
		require.Len(t, triggers.triggers, 1)
		require.Len(t, webhooks, 1)
		assert.Contains(t, webhooks[0].URL, "https://hooks.example.com/webhook/")
	})

	t.Run("Should remove a trigger absent from desired and not protected by a deployment", func(t *testing.T) {
		triggers := newMemTriggerRegistry()
		providers := newMemProviderRegistry()
		mgr := newTestManager(t, triggers, providers, nil)
		namespaceID := core.MustNewID()
		workflowID := core.MustNewID()

		_, err := mgr.Sync(t.Context(), workflowID, namespaceID, []DesiredTrigger{
			{ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onWebhook", Input: json.RawMessage(`{}`)},
		})
		require.NoError(t, err)
		require.Len(t, triggers.triggers, 1)

		_, err = mgr.Sync(t.Context(), workflowID, namespaceID, nil)

		require.NoError(t, err)
		assert.Len(t, triggers.triggers, 0)
	})

	t.Run("Should protect a deployed identity from removal even when absent from desired", func(t *testing.T) {
		triggers := newMemTriggerRegistry()
		providers := newMemProviderRegistry()
		namespaceID := core.MustNewID()
		workflowID := core.MustNewID()

		deployment := &workflow.Deployment{
			ID:         core.MustNewID(),
			WorkflowID: workflowID,
			TriggerDefinitions: []workflow.TriggerDefinition{
				{ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onWebhook", Input: json.RawMessage(`{}`)},
			},
		}
		mgr := newTestManager(t, triggers, providers, deployment)

		_, err := mgr.Sync(t.Context(), workflowID, namespaceID, []DesiredTrigger{
			{ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onWebhook", Input: json.RawMessage(`{}`)},
		})
		require.NoError(t, err)
		require.Len(t, triggers.triggers, 1)

		_, err = mgr.Sync(t.Context(), workflowID, namespaceID, nil)

		require.NoError(t, err)
		assert.Len(t, triggers.triggers, 1, "deployed identity must survive a sync that omits it from desired")
	})

	t.Run("Should fail fast when a setup-requiring provider does not exist", func(t *testing.T) {
		triggers := newMemTriggerRegistry()
		providers := newMemProviderRegistry()
		mgr := newTestManager(t, triggers, providers, nil)

		webhooks, err := mgr.Sync(t.Context(), core.MustNewID(), core.MustNewID(), []DesiredTrigger{
			{ProviderType: "gitlab", ProviderAlias: "main", TriggerType: "onPush", Input: json.RawMessage(`{}`)},
		})

		require.Error(t, err)
		assert.Empty(t, webhooks)
		assert.Len(t, triggers.triggers, 0, "the failed create's placeholder row must be rolled back")
	})
}

func TestManager_SyncAllRecurringTasks(t *testing.T) {
	t.Run("Should add a scheduler job for every recurring task and drop orphans", func(t *testing.T) {
		triggers := newMemTriggerRegistry()
		providers := newMemProviderRegistry()
		mgr := newTestManager(t, triggers, providers, nil)

		tr := &trigger.Trigger{WorkflowID: core.MustNewID(), ProviderType: "builtin", ProviderAlias: "default", TriggerType: "onCron", Input: json.RawMessage(`{"cronExpression":"0 0 * * *"}`)}
		require.NoError(t, triggers.Create(t.Context(), tr))
		rt := &trigger.RecurringTask{TriggerID: tr.ID}
		require.NoError(t, triggers.CreateRecurringTask(t.Context(), rt))

		orphanJobID := "recurring_task_does-not-exist"
		require.NoError(t, mgr.scheduler.AddJob(t.Context(), orphanJobID, scheduler.Schedule{CronExpression: "0 0 * * *"}))

		err := mgr.SyncAllRecurringTasks(t.Context())

		require.NoError(t, err)
		_, err = mgr.scheduler.GetJob(t.Context(), rt.JobID())
		require.NoError(t, err)
		_, err = mgr.scheduler.GetJob(t.Context(), orphanJobID)
		assert.Error(t, err, "orphan job lacking a recurring task row must be removed")
	})
}
