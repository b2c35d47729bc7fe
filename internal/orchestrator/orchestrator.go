// Package orchestrator owns the execution state machine. One dequeued job
// is driven pending→processing→{completed|failed}; the execution never
// stays in processing once the batch run has returned.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/executor"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

// ErrBadPayload marks a job that can never be processed; the consumer
// moves it to the DLQ instead of retrying.
var ErrBadPayload = errors.New("orchestrator: unprocessable job payload")

// how long a job waits before redelivery when it cannot run right now
// (lease held elsewhere, storage briefly down, unsettled items).
const requeueDelay = 10 * time.Second

// BatchRunner runs every item of a job to a terminal status.
type BatchRunner interface {
	Run(ctx context.Context, job domain.JobMessage) (domain.BatchSummary, error)
}

// Leases guards an execution against concurrent workers.
type Leases interface {
	Acquire(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, executionID, workerID string) (bool, error)
}

// Requeuer re-enqueues a job for a later delivery attempt.
type Requeuer interface {
	RequeueDelayed(ctx context.Context, job domain.JobMessage, delay time.Duration) error
}

type Orchestrator struct {
	store    repo.Store
	runner   BatchRunner
	leases   Leases
	requeue  Requeuer
	workerID string
	leaseTTL time.Duration
}

func New(store repo.Store, runner BatchRunner, leases Leases, requeue Requeuer, workerID string, leaseTTL time.Duration) *Orchestrator {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &Orchestrator{
		store:    store,
		runner:   runner,
		leases:   leases,
		requeue:  requeue,
		workerID: workerID,
		leaseTTL: leaseTTL,
	}
}

// Handle decodes and processes one raw queue payload.
func (o *Orchestrator) Handle(ctx context.Context, raw string) error {
	job, err := domain.DecodeJobMessage(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if job.ExecutionID == uuid.Nil {
		return fmt.Errorf("%w: missing execution id", ErrBadPayload)
	}
	return o.Process(ctx, job)
}

// Process drives one job to a terminal execution status. Returning nil
// means the job is handled (including "parked for redelivery"); only
// ErrBadPayload asks the consumer to dead-letter it.
func (o *Orchestrator) Process(ctx context.Context, job domain.JobMessage) error {
	execID := job.ExecutionID.String()
	logger := log.With().Str("execution_id", execID).Logger()

	held, err := o.leases.Acquire(ctx, execID, o.workerID, o.leaseTTL)
	if err != nil {
		logger.Error().Err(err).Msg("lease acquire failed, parking job")
		return o.park(ctx, job)
	}
	if !held {
		logger.Debug().Msg("execution leased by another worker, parking job")
		return o.park(ctx, job)
	}
	renewCtx, stopRenew := context.WithCancel(ctx)
	defer stopRenew()
	go o.keepLease(renewCtx, execID)
	defer func() {
		_, _ = o.leases.Release(context.Background(), execID, o.workerID)
	}()

	started, err := o.store.MarkExecutionProcessing(ctx, job.ExecutionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: execution %s does not exist", ErrBadPayload, execID)
		}
		logger.Error().Err(err).Msg("marking execution processing failed, parking job")
		return o.park(ctx, job)
	}
	if !started {
		exec, err := o.store.GetExecution(ctx, job.ExecutionID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: execution %s does not exist", ErrBadPayload, execID)
		}
		if err != nil {
			logger.Error().Err(err).Msg("loading execution failed, parking job")
			return o.park(ctx, job)
		}
		if exec.Terminal() {
			logger.Info().Str("status", exec.Status).Msg("redelivered job for terminal execution, dropping")
			return nil
		}
		// still processing: a previous worker crashed mid-batch; resume.
		logger.Warn().Msg("resuming interrupted execution")
	}

	start := time.Now()
	summary, runErr := o.runner.Run(ctx, job)
	metric.Timing(metric.ExecutionLatency, time.Since(start))

	if runErr != nil {
		if errors.Is(runErr, executor.ErrIncomplete) {
			logger.Warn().
				Int("succeeded", summary.Succeeded).
				Int("failed", summary.Failed).
				Msg("batch incomplete, parking job for resume")
			return o.park(ctx, job)
		}
		// structural failure: the batch could not run at all
		logger.Error().Err(runErr).Msg("batch run failed structurally")
		if err := o.store.FinalizeExecution(ctx, job.ExecutionID, domain.ExecutionFailed, runErr.Error()); err != nil {
			logger.Error().Err(err).Msg("finalize failed, reaper will retry")
			return o.park(ctx, job)
		}
		metric.Incr(metric.ExecutionCount, "status:failed")
		return nil
	}

	// every item settled: any failed item fails the execution; partial
	// results stay readable through the counters and item list.
	status := domain.ExecutionCompleted
	if summary.Failed > 0 {
		status = domain.ExecutionFailed
	}
	if err := o.store.FinalizeExecution(ctx, job.ExecutionID, status, ""); err != nil {
		logger.Error().Err(err).Msg("finalize failed, reaper will retry")
		return o.park(ctx, job)
	}
	metric.Incr(metric.ExecutionCount, "status:"+status)
	logger.Info().
		Str("status", status).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Msg("execution finished")
	return nil
}

func (o *Orchestrator) keepLease(ctx context.Context, execID string) {
	tk := time.NewTicker(o.leaseTTL / 3)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if _, err := o.leases.Renew(ctx, execID, o.workerID, o.leaseTTL); err != nil {
				log.Warn().Err(err).Str("execution_id", execID).Msg("lease renew failed")
			}
		}
	}
}

func (o *Orchestrator) park(ctx context.Context, job domain.JobMessage) error {
	if err := o.requeue.RequeueDelayed(ctx, job, requeueDelay); err != nil {
		return fmt.Errorf("parking job for execution %s: %w", job.ExecutionID, err)
	}
	return nil
}
