package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

// LeaseChecker reports whether any worker still holds an execution lease.
type LeaseChecker interface {
	Held(ctx context.Context, executionID string) (bool, error)
}

// Enqueuer re-submits a rebuilt job to its ready queue.
type Enqueuer interface {
	EnqueueReady(ctx context.Context, queueName, payload string) error
}

// Reaper re-enqueues executions stuck in processing. An execution whose
// lease expired and whose row has not been touched for two lease TTLs
// belongs to a crashed worker; redelivery is safe because item settlement
// is idempotent and already-terminal items are skipped on resume.
type Reaper struct {
	store    repo.Store
	leases   LeaseChecker
	enqueue  Enqueuer
	leaseTTL time.Duration
}

func NewReaper(store repo.Store, leases LeaseChecker, enqueue Enqueuer, leaseTTL time.Duration) *Reaper {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &Reaper{store: store, leases: leases, enqueue: enqueue, leaseTTL: leaseTTL}
}

func (r *Reaper) Start(ctx context.Context, interval time.Duration) {
	tkr := time.NewTicker(interval)
	defer tkr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tkr.C:
			r.ReapOnce(ctx, time.Now())
		}
	}
}

// ReapOnce scans for stale processing executions and re-enqueues the
// orphaned ones. Exported for the run loop and tests.
func (r *Reaper) ReapOnce(ctx context.Context, now time.Time) {
	stale, err := r.store.ListStaleProcessing(ctx, now.Add(-2*r.leaseTTL))
	if err != nil {
		log.Error().Err(err).Msg("listing stale executions failed")
		return
	}
	for i := range stale {
		exec := &stale[i]
		held, err := r.leases.Held(ctx, exec.ID.String())
		if err != nil {
			log.Warn().Err(err).Str("execution_id", exec.ID.String()).Msg("lease check failed, skipping")
			continue
		}
		if held {
			// a worker is still on it, just slow
			continue
		}
		if err := r.requeue(ctx, exec); err != nil {
			log.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("requeueing stale execution failed")
			continue
		}
		metric.Incr(metric.ReapedCount)
		log.Warn().
			Str("execution_id", exec.ID.String()).
			Str("queue", exec.QueueName).
			Msg("orphaned execution re-enqueued")
	}
}

func (r *Reaper) requeue(ctx context.Context, exec *domain.Execution) error {
	var items []domain.ItemInput
	if err := json.Unmarshal(exec.Items, &items); err != nil {
		return err
	}
	queueName := exec.QueueName
	if queueName == "" {
		queueName = "default"
	}
	job := domain.JobMessage{
		ExecutionID:   exec.ID,
		WorkflowID:    exec.WorkflowID,
		TenantID:      exec.TenantID,
		ResourceClass: string(exec.ResourceClass),
		QueueName:     queueName,
		Items:         items,
	}
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	return r.enqueue.EnqueueReady(ctx, queueName, payload)
}
