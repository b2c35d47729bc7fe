package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

type staticLease struct {
	held bool
}

func (s staticLease) Held(context.Context, string) (bool, error) { return s.held, nil }

type captureQueue struct {
	payloads map[string][]string
}

func (c *captureQueue) EnqueueReady(_ context.Context, queueName, payload string) error {
	if c.payloads == nil {
		c.payloads = map[string][]string{}
	}
	c.payloads[queueName] = append(c.payloads[queueName], payload)
	return nil
}

func seedProcessing(t *testing.T, store repo.Store, queueName string) *domain.Execution {
	t.Helper()
	snapshot, err := json.Marshal([]domain.ItemInput{{Prompt: "a"}, {Prompt: "b"}})
	require.NoError(t, err)
	exec := &domain.Execution{
		ID:            uuid.New(),
		WorkflowID:    uuid.New(),
		TenantID:      uuid.New(),
		Status:        domain.ExecutionPending,
		ResourceClass: domain.ClassFast,
		QueueName:     queueName,
		Items:         snapshot,
		Total:         2,
	}
	require.NoError(t, store.CreateExecution(context.Background(), exec))
	started, err := store.MarkExecutionProcessing(context.Background(), exec.ID)
	require.NoError(t, err)
	require.True(t, started)
	return exec
}

func TestReaperRequeuesOrphanedExecution(t *testing.T) {
	store := repo.NewMemory()
	q := &captureQueue{}
	r := NewReaper(store, staticLease{held: false}, q, 30*time.Second)
	exec := seedProcessing(t, store, "heavy")

	r.ReapOnce(context.Background(), time.Now().Add(5*time.Minute))

	require.Len(t, q.payloads["heavy"], 1)
	job, err := domain.DecodeJobMessage(q.payloads["heavy"][0])
	require.NoError(t, err)
	require.Equal(t, exec.ID, job.ExecutionID)
	require.Equal(t, "heavy", job.QueueName)
	require.Equal(t, []domain.ItemInput{{Prompt: "a"}, {Prompt: "b"}}, job.Items)
}

func TestReaperSkipsExecutionWithLiveLease(t *testing.T) {
	store := repo.NewMemory()
	q := &captureQueue{}
	r := NewReaper(store, staticLease{held: true}, q, 30*time.Second)
	seedProcessing(t, store, "default")

	r.ReapOnce(context.Background(), time.Now().Add(5*time.Minute))
	require.Empty(t, q.payloads)
}

func TestReaperIgnoresFreshProcessing(t *testing.T) {
	store := repo.NewMemory()
	q := &captureQueue{}
	r := NewReaper(store, staticLease{held: false}, q, 30*time.Second)
	seedProcessing(t, store, "default")

	r.ReapOnce(context.Background(), time.Now())
	require.Empty(t, q.payloads)
}
