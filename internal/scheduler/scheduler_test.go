package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
)

type recordingCreator struct {
	dedups []string
}

func (r *recordingCreator) Create(_ context.Context, req service.CreateExecutionRequest) (*domain.Execution, bool, error) {
	for _, d := range r.dedups {
		if d == req.DedupKey {
			return &domain.Execution{ID: uuid.New()}, false, nil
		}
	}
	r.dedups = append(r.dedups, req.DedupKey)
	return &domain.Execution{ID: uuid.New()}, true, nil
}

type openLock struct{}

func (openLock) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func (openLock) Release(context.Context, string, string) (bool, error) { return true, nil }

type closedLock struct{}

func (closedLock) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}

func (closedLock) Release(context.Context, string, string) (bool, error) { return false, nil }

func seedSchedule(t *testing.T, store repo.Store, expr string, last *time.Time) *domain.WorkflowSchedule {
	t.Helper()
	s := &domain.WorkflowSchedule{
		ID:              uuid.New(),
		WorkflowID:      uuid.New(),
		TenantID:        uuid.New(),
		CronExpr:        expr,
		Timezone:        "UTC",
		Enabled:         true,
		LastTriggeredAt: last,
	}
	require.NoError(t, store.CreateSchedule(context.Background(), s))
	return s
}

func TestDueWindowsCatchUpFromLastTrigger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	last := now.Add(-3 * time.Minute)
	sched := &domain.WorkflowSchedule{CronExpr: "* * * * *", Timezone: "UTC", LastTriggeredAt: &last}

	due, err := dueWindows(sched, now, time.UTC)
	require.NoError(t, err)
	require.Len(t, due, 3)
	for i := 1; i < len(due); i++ {
		require.True(t, due[i].After(due[i-1]))
	}
	require.True(t, due[len(due)-1].Before(now) || due[len(due)-1].Equal(now))
}

func TestDueWindowsCapsCatchUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Minute)
	sched := &domain.WorkflowSchedule{CronExpr: "* * * * *", Timezone: "UTC", LastTriggeredAt: &last}

	due, err := dueWindows(sched, now, time.UTC)
	require.NoError(t, err)
	require.Len(t, due, maxCatchUp)
}

func TestDueWindowsBoundsLookbackForColdSchedules(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sched := &domain.WorkflowSchedule{CronExpr: "0 * * * *", Timezone: "UTC"} // hourly, never fired

	due, err := dueWindows(sched, now, time.UTC)
	require.NoError(t, err)
	require.Len(t, due, 1, "only windows inside the lookback fire")
	require.Equal(t, now, due[0])
}

func TestTickFiresDueSchedulesOnce(t *testing.T) {
	store := repo.NewMemory()
	creator := &recordingCreator{}
	s := New(store, creator, openLock{}, nil, "sched-1", time.Second, time.UTC)

	last := time.Date(2026, 3, 1, 11, 58, 0, 0, time.UTC)
	seedSchedule(t, store, "* * * * *", &last)

	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	s.Tick(context.Background(), now)
	require.Len(t, creator.dedups, 2)

	// replaying the same tick creates nothing new: dedup keys collide and
	// LastTriggeredAt has advanced.
	s.Tick(context.Background(), now)
	require.Len(t, creator.dedups, 2)

	enabled := true
	scheds, err := store.ListSchedules(context.Background(), &enabled)
	require.NoError(t, err)
	require.NotNil(t, scheds[0].LastTriggeredAt)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), scheds[0].LastTriggeredAt.UTC())
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	store := repo.NewMemory()
	creator := &recordingCreator{}
	s := New(store, creator, closedLock{}, nil, "sched-2", time.Second, time.UTC)

	last := time.Now().Add(-5 * time.Minute)
	seedSchedule(t, store, "* * * * *", &last)

	s.Tick(context.Background(), time.Now())
	require.Empty(t, creator.dedups)
}
