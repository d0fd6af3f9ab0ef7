package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*Job
	lockedUntil map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*Job), lockedUntil: make(map[string]time.Time)}
}

func (m *memStore) UpsertJob(_ context.Context, job *Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memStore) DeleteJob(_ context.Context, id string) error {
	delete(m.jobs, id)
	return nil
}

func (m *memStore) ListJobs(_ context.Context) ([]*Job, error) {
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *memStore) GetJob(_ context.Context, id string) (*Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return j, nil
}

// ClaimRun simulates the shared-row compare-and-swap a real Postgres
// UPDATE ... WHERE locked_until < now() performs, so tests can exercise
// cross-replica exclusion without a database.
func (m *memStore) ClaimRun(_ context.Context, jobID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.lockedUntil[jobID]; ok && time.Now().Before(until) {
		return false, nil
	}
	m.lockedUntil[jobID] = time.Now().Add(ttl)
	return true, nil
}

func (m *memStore) ReleaseRun(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lockedUntil, jobID)
	return nil
}

func TestScheduler_AddRemoveJob(t *testing.T) {
	t.Run("Should persist an added job to the store", func(t *testing.T) {
		store := newMemStore()
		sched := New(store, func(context.Context, string) {})
		err := sched.AddJob(context.Background(), "recurring_task_1", Schedule{CronExpression: "*/5 * * * *"})
		require.NoError(t, err)
		job, err := sched.GetJob(context.Background(), "recurring_task_1")
		require.NoError(t, err)
		assert.Equal(t, "*/5 * * * *", job.Schedule.CronExpression)
	})

	t.Run("Should remove a job from both cron and the store", func(t *testing.T) {
		store := newMemStore()
		sched := New(store, func(context.Context, string) {})
		require.NoError(t, sched.AddJob(context.Background(), "recurring_task_2", Schedule{IntervalSeconds: 60}))
		require.NoError(t, sched.RemoveJob(context.Background(), "recurring_task_2"))
		job, err := sched.GetJob(context.Background(), "recurring_task_2")
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("Should reject a schedule with neither cron nor interval", func(t *testing.T) {
		store := newMemStore()
		sched := New(store, func(context.Context, string) {})
		err := sched.AddJob(context.Background(), "recurring_task_3", Schedule{})
		require.Error(t, err)
	})
}

func TestScheduler_MaxInstancesOne(t *testing.T) {
	t.Run("Should skip a concurrent run while the previous one is in flight", func(t *testing.T) {
		store := newMemStore()
		var callCount int32
		started := make(chan struct{})
		release := make(chan struct{})
		sched := New(store, func(context.Context, string) {
			atomic.AddInt32(&callCount, 1)
			close(started)
			<-release
		})
		wrapped := sched.wrap("job")
		go wrapped()
		<-started
		wrapped() // should be skipped: previous run still in flight
		close(release)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(1), atomic.LoadInt32(&callCount))
	})

	t.Run("Should let only one replica execute a tick when two share a store", func(t *testing.T) {
		store := newMemStore()
		var callCount int32
		execute := func(context.Context, string) {
			atomic.AddInt32(&callCount, 1)
		}
		sched1 := New(store, execute)
		sched2 := New(store, execute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); sched1.wrap("recurring_task_shared")() }()
		go func() { defer wg.Done(); sched2.wrap("recurring_task_shared")() }()
		wg.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&callCount))
	})
}
