package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

func newPendingExecution(t *testing.T, store Store, total int) *domain.Execution {
	t.Helper()
	e := &domain.Execution{
		ID:            uuid.New(),
		WorkflowID:    uuid.New(),
		TenantID:      uuid.New(),
		Status:        domain.ExecutionPending,
		ResourceClass: domain.ClassFast,
		Items:         []byte(`[]`),
		Total:         total,
	}
	require.NoError(t, store.CreateExecution(context.Background(), e))
	return e
}

func TestCreateItemIdempotent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	e := newPendingExecution(t, store, 1)

	first, err := store.CreateItem(ctx, e.ID, 0)
	require.NoError(t, err)
	second, err := store.CreateItem(ctx, e.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	items, err := store.ListItems(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSettleItemIncrementsCountersExactlyOnce(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	e := newPendingExecution(t, store, 1)

	it, err := store.CreateItem(ctx, e.ID, 0)
	require.NoError(t, err)

	outcome := domain.ItemOutcome{Succeeded: true, ResultURL: "https://cdn/img.png", CostCents: 7}
	require.NoError(t, store.SettleItem(ctx, it.ID, outcome))
	require.NoError(t, store.SettleItem(ctx, it.ID, outcome)) // redelivery

	got, err := store.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, int64(7), got.CostCents)

	items, err := store.ListItems(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemSucceeded, items[0].Status)
	require.NotNil(t, items[0].ResultURL)
	assert.Equal(t, "https://cdn/img.png", *items[0].ResultURL)
	assert.NotNil(t, items[0].SettledAt)
}

func TestSettleFailedItem(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	e := newPendingExecution(t, store, 1)

	it, err := store.CreateItem(ctx, e.ID, 0)
	require.NoError(t, err)
	require.NoError(t, store.SettleItem(ctx, it.ID, domain.ItemOutcome{Error: "boom"}))

	got, err := store.GetExecution(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Succeeded)
	assert.Equal(t, 1, got.Failed)

	items, _ := store.ListItems(ctx, e.ID)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemFailed, items[0].Status)
	require.NotNil(t, items[0].Error)
	assert.Equal(t, "boom", *items[0].Error)
}

func TestListItemsOrderedByIndex(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	e := newPendingExecution(t, store, 3)

	for _, idx := range []int{2, 0, 1} {
		_, err := store.CreateItem(ctx, e.ID, idx)
		require.NoError(t, err)
	}
	items, err := store.ListItems(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, i, it.Index)
	}
}

func TestExecutionTimestampsSetOnce(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	e := newPendingExecution(t, store, 0)

	got, _ := store.GetExecution(ctx, e.ID)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	started, err := store.MarkExecutionProcessing(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, started)

	got, _ = store.GetExecution(ctx, e.ID)
	require.NotNil(t, got.StartedAt)
	firstStart := *got.StartedAt

	// second transition attempt is a no-op
	started, err = store.MarkExecutionProcessing(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, started)
	got, _ = store.GetExecution(ctx, e.ID)
	assert.Equal(t, firstStart, *got.StartedAt)

	require.NoError(t, store.FinalizeExecution(ctx, e.ID, domain.ExecutionCompleted, ""))
	got, _ = store.GetExecution(ctx, e.ID)
	require.NotNil(t, got.CompletedAt)
	firstComplete := *got.CompletedAt
	assert.False(t, firstComplete.Before(firstStart))

	// finalize after terminal is a no-op
	require.NoError(t, store.FinalizeExecution(ctx, e.ID, domain.ExecutionFailed, "late"))
	got, _ = store.GetExecution(ctx, e.ID)
	assert.Equal(t, domain.ExecutionCompleted, got.Status)
	assert.Equal(t, firstComplete, *got.CompletedAt)
	assert.Nil(t, got.Error)
}

func TestFindActiveExecutionByDedup(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	withKey := &domain.Execution{
		ID:       uuid.New(),
		Status:   domain.ExecutionPending,
		Items:    []byte(`[]`),
		DedupKey: "tenant-1:batch-9",
	}
	require.NoError(t, store.CreateExecution(ctx, withKey))

	found, err := store.FindActiveExecutionByDedup(ctx, "tenant-1:batch-9")
	require.NoError(t, err)
	assert.Equal(t, withKey.ID, found.ID)

	_, err = store.FindActiveExecutionByDedup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
