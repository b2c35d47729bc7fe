package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/executor"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

type fakeRunner struct {
	calls   int
	summary domain.BatchSummary
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, job domain.JobMessage) (domain.BatchSummary, error) {
	f.calls++
	return f.summary, f.err
}

type fakeLeases struct {
	granted bool
}

func (f *fakeLeases) Acquire(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error) {
	return f.granted, nil
}

func (f *fakeLeases) Renew(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error) {
	return f.granted, nil
}

func (f *fakeLeases) Release(ctx context.Context, executionID, workerID string) (bool, error) {
	return true, nil
}

type fakeRequeuer struct {
	parked []domain.JobMessage
}

func (f *fakeRequeuer) RequeueDelayed(ctx context.Context, job domain.JobMessage, delay time.Duration) error {
	f.parked = append(f.parked, job)
	return nil
}

func newFixture(t *testing.T, runner *fakeRunner) (*Orchestrator, repo.Store, *fakeRequeuer, domain.JobMessage) {
	t.Helper()
	store := repo.NewMemory()
	requeue := &fakeRequeuer{}
	orc := New(store, runner, &fakeLeases{granted: true}, requeue, "worker-1", 30*time.Second)

	exec := &domain.Execution{
		ID:         uuid.New(),
		WorkflowID: uuid.New(),
		TenantID:   uuid.New(),
		Status:     domain.ExecutionPending,
		Total:      3,
	}
	require.NoError(t, store.CreateExecution(context.Background(), exec))
	job := domain.JobMessage{
		ExecutionID:   exec.ID,
		WorkflowID:    exec.WorkflowID,
		TenantID:      exec.TenantID,
		ResourceClass: string(domain.ClassFast),
		Items:         []domain.ItemInput{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}},
	}
	return orc, store, requeue, job
}

func TestProcessCompletesExecution(t *testing.T) {
	runner := &fakeRunner{summary: domain.BatchSummary{Succeeded: 3, Total: 3}}
	orc, store, requeue, job := newFixture(t, runner)

	require.NoError(t, orc.Process(context.Background(), job))

	exec, err := store.GetExecution(context.Background(), job.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionCompleted, exec.Status)
	require.NotNil(t, exec.StartedAt)
	require.NotNil(t, exec.CompletedAt)
	require.Empty(t, requeue.parked)
	require.Equal(t, 1, runner.calls)
}

func TestAnyFailedItemFailsExecution(t *testing.T) {
	runner := &fakeRunner{summary: domain.BatchSummary{Succeeded: 2, Failed: 1, Total: 3}}
	orc, store, _, job := newFixture(t, runner)

	require.NoError(t, orc.Process(context.Background(), job))

	exec, err := store.GetExecution(context.Background(), job.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, exec.Status)
	require.NotNil(t, exec.CompletedAt)
}

func TestStructuralRunFailureFinalizesFailed(t *testing.T) {
	runner := &fakeRunner{err: errors.New("empty batch")}
	orc, store, requeue, job := newFixture(t, runner)

	require.NoError(t, orc.Process(context.Background(), job))

	exec, err := store.GetExecution(context.Background(), job.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionFailed, exec.Status)
	require.NotNil(t, exec.Error)
	require.Contains(t, *exec.Error, "empty batch")
	require.Empty(t, requeue.parked)
}

func TestIncompleteBatchParksWithoutFinalizing(t *testing.T) {
	runner := &fakeRunner{
		summary: domain.BatchSummary{Succeeded: 1, Total: 3},
		err:     executor.ErrIncomplete,
	}
	orc, store, requeue, job := newFixture(t, runner)

	require.NoError(t, orc.Process(context.Background(), job))

	exec, err := store.GetExecution(context.Background(), job.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionProcessing, exec.Status)
	require.Nil(t, exec.CompletedAt)
	require.Len(t, requeue.parked, 1)
	require.Equal(t, job.ExecutionID, requeue.parked[0].ExecutionID)
}

func TestTerminalRedeliveryIsDropped(t *testing.T) {
	runner := &fakeRunner{summary: domain.BatchSummary{Succeeded: 3, Total: 3}}
	orc, _, requeue, job := newFixture(t, runner)

	require.NoError(t, orc.Process(context.Background(), job))
	require.NoError(t, orc.Process(context.Background(), job))

	require.Equal(t, 1, runner.calls, "terminal execution must not run again")
	require.Empty(t, requeue.parked)
}

func TestLeaseHeldElsewhereParksJob(t *testing.T) {
	runner := &fakeRunner{summary: domain.BatchSummary{Succeeded: 3, Total: 3}}
	store := repo.NewMemory()
	requeue := &fakeRequeuer{}
	orc := New(store, runner, &fakeLeases{granted: false}, requeue, "worker-1", 30*time.Second)

	exec := &domain.Execution{ID: uuid.New(), Status: domain.ExecutionPending}
	require.NoError(t, store.CreateExecution(context.Background(), exec))
	job := domain.JobMessage{ExecutionID: exec.ID}

	require.NoError(t, orc.Process(context.Background(), job))

	require.Zero(t, runner.calls)
	require.Len(t, requeue.parked, 1)
	got, err := store.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionPending, got.Status)
}

func TestUnknownExecutionIsBadPayload(t *testing.T) {
	runner := &fakeRunner{}
	orc := New(repo.NewMemory(), runner, &fakeLeases{granted: true}, &fakeRequeuer{}, "worker-1", 30*time.Second)

	err := orc.Process(context.Background(), domain.JobMessage{ExecutionID: uuid.New()})
	require.ErrorIs(t, err, ErrBadPayload)
}

func TestHandleRejectsMalformedPayloads(t *testing.T) {
	orc := New(repo.NewMemory(), &fakeRunner{}, &fakeLeases{granted: true}, &fakeRequeuer{}, "worker-1", 30*time.Second)

	require.ErrorIs(t, orc.Handle(context.Background(), "{not json"), ErrBadPayload)

	raw, err := domain.JobMessage{}.Encode()
	require.NoError(t, err)
	require.ErrorIs(t, orc.Handle(context.Background(), raw), ErrBadPayload)
}
