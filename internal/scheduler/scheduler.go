// Package scheduler turns enabled workflow schedules into executions.
// A single instance ticks at a time (Redis lock); missed windows are
// caught up with a bounded lookback, and every fired window carries a
// dedup key so a tick replay never creates a duplicate execution.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

const (
	tickLockKey = "lock:scheduler:tick"
	tickLockTTL = 30 * time.Second
	maxCatchUp  = 10        // fired windows per schedule per tick
	maxLookback = time.Hour // older missed windows are skipped
)

// ExecutionCreator is the slice of the execution service the scheduler
// needs.
type ExecutionCreator interface {
	Create(ctx context.Context, req service.CreateExecutionRequest) (*domain.Execution, bool, error)
}

// TickRecorder persists per-tick observability counters.
type TickRecorder interface {
	RecordTick(ctx context.Context, at time.Time, enabled, fired int)
}

// RedisTickRecorder keeps a running tick counter and a last-tick summary
// for the metrics endpoint.
type RedisTickRecorder struct {
	Rdb *redis.Client
}

func (r RedisTickRecorder) RecordTick(ctx context.Context, at time.Time, enabled, fired int) {
	pipe := r.Rdb.TxPipeline()
	pipe.Incr(ctx, "metrics:scheduler:ticks")
	pipe.HSet(ctx, "metrics:scheduler:last", map[string]interface{}{
		"time":          at.UTC().Format(time.RFC3339),
		"enabled_count": enabled,
		"fired_count":   fired,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("recording tick metrics failed")
	}
}

// Locker serializes ticks across scheduler instances.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
}

// RedisLocker locks through the queue package's SETNX lock.
type RedisLocker struct {
	Rdb *redis.Client
}

func (l RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return queue.AcquireLock(ctx, l.Rdb, key, owner, ttl)
}

func (l RedisLocker) Release(ctx context.Context, key, owner string) (bool, error) {
	return queue.ReleaseLock(ctx, l.Rdb, key, owner)
}

type Scheduler struct {
	store      repo.Store
	executions ExecutionCreator
	lock       Locker
	metrics    TickRecorder
	instanceID string
	tick       time.Duration
	location   *time.Location
}

func New(store repo.Store, executions ExecutionCreator, lock Locker, metrics TickRecorder, instanceID string, tick time.Duration, location *time.Location) *Scheduler {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		store:      store,
		executions: executions,
		lock:       lock,
		metrics:    metrics,
		instanceID: instanceID,
		tick:       tick,
		location:   location,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.tick)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			s.Tick(ctx, time.Now())
		}
	}
}

// Tick fires every due window of every enabled schedule. Exported for
// the run loop and tests; callers outside tests pass time.Now().
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	held, err := s.lock.Acquire(ctx, tickLockKey, s.instanceID, tickLockTTL)
	if err != nil {
		log.Error().Err(err).Msg("scheduler lock acquire failed")
		return
	}
	if !held {
		return
	}
	defer s.lock.Release(ctx, tickLockKey, s.instanceID)

	enabled := true
	schedules, err := s.store.ListSchedules(ctx, &enabled)
	if err != nil {
		log.Error().Err(err).Msg("listing schedules failed")
		return
	}
	metric.Incr(metric.SchedulerTickCount)

	totalFired := 0
	for i := range schedules {
		fired, err := s.fireDue(ctx, &schedules[i], now)
		totalFired += fired
		if err != nil {
			log.Error().Err(err).
				Str("schedule_id", schedules[i].ID.String()).
				Msg("schedule trigger failed")
		}
	}
	if s.metrics != nil {
		s.metrics.RecordTick(ctx, now, len(schedules), totalFired)
	}
}

func (s *Scheduler) fireDue(ctx context.Context, sched *domain.WorkflowSchedule, now time.Time) (int, error) {
	due, err := dueWindows(sched, now, s.location)
	if err != nil {
		return 0, err
	}
	fired := 0
	for _, at := range due {
		dedup := fmt.Sprintf("sched:%s:%d", sched.ID, at.Unix())
		exec, created, err := s.executions.Create(ctx, service.CreateExecutionRequest{
			WorkflowID: sched.WorkflowID,
			TenantID:   sched.TenantID,
			DedupKey:   dedup,
		})
		if err != nil {
			return fired, err
		}
		if created {
			fired++
			metric.Incr(metric.ScheduleFireCount)
			log.Info().
				Str("schedule_id", sched.ID.String()).
				Str("execution_id", exec.ID.String()).
				Time("window", at).
				Msg("schedule fired")
		}
		if err := s.store.UpdateScheduleLastTriggeredAt(ctx, sched.ID, at); err != nil {
			return fired, err
		}
	}
	return fired, nil
}

// dueWindows returns the cron fire times in (from, now], oldest first,
// where from is the later of LastTriggeredAt and now-maxLookback, capped
// at maxCatchUp entries.
func dueWindows(sched *domain.WorkflowSchedule, now time.Time, fallback *time.Location) ([]time.Time, error) {
	expr, err := service.CronParser.Parse(sched.CronExpr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron %q: %w", sched.CronExpr, err)
	}
	loc := fallback
	if sched.Timezone != "" {
		if l, err := time.LoadLocation(sched.Timezone); err == nil {
			loc = l
		}
	}

	from := now.Add(-maxLookback)
	if sched.LastTriggeredAt != nil && sched.LastTriggeredAt.After(from) {
		from = *sched.LastTriggeredAt
	}

	var due []time.Time
	next := expr.Next(from.In(loc))
	for !next.IsZero() && !next.After(now) && len(due) < maxCatchUp {
		due = append(due, next)
		next = expr.Next(next)
	}
	return due, nil
}
