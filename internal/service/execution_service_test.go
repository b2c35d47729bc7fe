package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

type fakeQueue struct {
	ready   map[string][]string
	delayed map[string][]string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{ready: map[string][]string{}, delayed: map[string][]string{}}
}

func (f *fakeQueue) EnqueueReady(_ context.Context, queueName, payload string) error {
	f.ready[queueName] = append(f.ready[queueName], payload)
	return nil
}

func (f *fakeQueue) EnqueueDelayed(_ context.Context, queueName, payload string, _ time.Time) error {
	f.delayed[queueName] = append(f.delayed[queueName], payload)
	return nil
}

func seedWorkflow(t *testing.T, store repo.Store, prompts []string) *domain.Workflow {
	t.Helper()
	wf := &domain.Workflow{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		Name:          "catalog shots",
		ResourceClass: domain.ClassHeavy,
		Prompts:       prompts,
		Status:        domain.WorkflowActive,
	}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf))
	return wf
}

func TestCreateExecutionSnapshotsPromptsAndEnqueues(t *testing.T) {
	store := repo.NewMemory()
	q := newFakeQueue()
	svc := NewExecutionService(store, q, "default")
	wf := seedWorkflow(t, store, []string{"red chair", "blue chair"})

	exec, created, err := svc.Create(context.Background(), CreateExecutionRequest{
		WorkflowID: wf.ID,
		TenantID:   wf.TenantID,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, domain.ExecutionPending, exec.Status)
	require.Equal(t, 2, exec.Total)
	require.Equal(t, domain.ClassHeavy, exec.ResourceClass)

	require.Len(t, q.ready["default"], 1)
	job, err := domain.DecodeJobMessage(q.ready["default"][0])
	require.NoError(t, err)
	require.Equal(t, exec.ID, job.ExecutionID)
	require.Equal(t, []domain.ItemInput{{Prompt: "red chair"}, {Prompt: "blue chair"}}, job.Items)
}

func TestCreateExecutionDedupReturnsActiveRun(t *testing.T) {
	store := repo.NewMemory()
	q := newFakeQueue()
	svc := NewExecutionService(store, q, "default")
	wf := seedWorkflow(t, store, []string{"p"})

	first, created, err := svc.Create(context.Background(), CreateExecutionRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID, DedupKey: "order-42",
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Create(context.Background(), CreateExecutionRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID, DedupKey: "order-42",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, q.ready["default"], 1, "duplicate submission must not enqueue a second job")
}

func TestCreateExecutionDeferredGoesToDelayedQueue(t *testing.T) {
	store := repo.NewMemory()
	q := newFakeQueue()
	svc := NewExecutionService(store, q, "default")
	wf := seedWorkflow(t, store, []string{"p"})

	startAfter := time.Now().Add(time.Hour)
	_, _, err := svc.Create(context.Background(), CreateExecutionRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID, StartAfter: &startAfter,
	})
	require.NoError(t, err)
	require.Empty(t, q.ready["default"])
	require.Len(t, q.delayed["default"], 1)
}

func TestCreateExecutionRejectsArchivedWorkflow(t *testing.T) {
	store := repo.NewMemory()
	svc := NewExecutionService(store, newFakeQueue(), "default")
	wf := seedWorkflow(t, store, []string{"p"})
	wf.Status = domain.WorkflowArchived
	require.NoError(t, store.CreateWorkflow(context.Background(), wf))

	_, _, err := svc.Create(context.Background(), CreateExecutionRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID,
	})
	require.ErrorIs(t, err, ErrWorkflowArchived)
}

func TestCreateScheduleValidatesCron(t *testing.T) {
	store := repo.NewMemory()
	svc := NewScheduleService(store)
	wf := seedWorkflow(t, store, []string{"p"})

	_, err := svc.Create(context.Background(), CreateScheduleRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID, CronExpr: "not a cron",
	})
	require.Error(t, err)

	sched, err := svc.Create(context.Background(), CreateScheduleRequest{
		WorkflowID: wf.ID, TenantID: wf.TenantID, CronExpr: "*/5 * * * *",
	})
	require.NoError(t, err)
	require.True(t, sched.Enabled)
	require.Equal(t, "UTC", sched.Timezone)
}
