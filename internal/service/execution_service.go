// Package service holds the write-side business logic shared by the API
// and the scheduler: creating workflows, executions and schedules, and
// routing the resulting jobs onto the queue.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

var (
	ErrWorkflowArchived = errors.New("service: workflow is archived")
	ErrEmptyWorkflow    = errors.New("service: workflow has no prompts")
)

// Enqueuer abstracts job submission so tests do not need Redis.
type Enqueuer interface {
	EnqueueReady(ctx context.Context, queueName, payload string) error
	EnqueueDelayed(ctx context.Context, queueName, payload string, triggerAt time.Time) error
}

// RedisEnqueuer submits jobs through the Redis queue.
type RedisEnqueuer struct {
	Rdb *redis.Client
}

func (r RedisEnqueuer) EnqueueReady(ctx context.Context, queueName, payload string) error {
	return queue.EnqueueReady(ctx, r.Rdb, queueName, payload)
}

func (r RedisEnqueuer) EnqueueDelayed(ctx context.Context, queueName, payload string, triggerAt time.Time) error {
	return queue.EnqueueDelayed(ctx, r.Rdb, queueName, payload, triggerAt)
}

type CreateExecutionRequest struct {
	WorkflowID uuid.UUID
	TenantID   uuid.UUID
	QueueName  string
	DedupKey   string
	// StartAfter defers the job to the delayed queue until the given time.
	StartAfter *time.Time
}

type ExecutionService struct {
	store        repo.Store
	enqueue      Enqueuer
	defaultQueue string
}

func NewExecutionService(store repo.Store, enqueue Enqueuer, defaultQueue string) *ExecutionService {
	if defaultQueue == "" {
		defaultQueue = "default"
	}
	return &ExecutionService{store: store, enqueue: enqueue, defaultQueue: defaultQueue}
}

// Create snapshots the workflow's prompts into a new pending execution and
// enqueues its job. With a dedup key, an already-active execution for the
// same key is returned instead (created=false); retried submissions never
// fan out twice.
func (s *ExecutionService) Create(ctx context.Context, req CreateExecutionRequest) (*domain.Execution, bool, error) {
	if req.DedupKey != "" {
		existing, err := s.store.FindActiveExecutionByDedup(ctx, req.DedupKey)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	wf, err := s.store.GetWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return nil, false, err
	}
	if wf.Status == domain.WorkflowArchived {
		return nil, false, ErrWorkflowArchived
	}
	if len(wf.Prompts) == 0 {
		return nil, false, ErrEmptyWorkflow
	}

	items := make([]domain.ItemInput, len(wf.Prompts))
	for i, p := range wf.Prompts {
		items[i] = domain.ItemInput{Prompt: p}
	}
	snapshot, err := json.Marshal(items)
	if err != nil {
		return nil, false, fmt.Errorf("snapshotting items: %w", err)
	}

	queueName := req.QueueName
	if queueName == "" {
		queueName = s.defaultQueue
	}
	exec := &domain.Execution{
		ID:            uuid.New(),
		WorkflowID:    wf.ID,
		TenantID:      req.TenantID,
		Status:        domain.ExecutionPending,
		ResourceClass: wf.ResourceClass,
		QueueName:     queueName,
		Items:         snapshot,
		Total:         len(items),
		DedupKey:      req.DedupKey,
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		// dedup unique index lost a race: surface the winner.
		if req.DedupKey != "" {
			if winner, ferr := s.store.FindActiveExecutionByDedup(ctx, req.DedupKey); ferr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	job := domain.JobMessage{
		ExecutionID:   exec.ID,
		WorkflowID:    wf.ID,
		TenantID:      req.TenantID,
		ResourceClass: string(wf.ResourceClass),
		QueueName:     queueName,
		Items:         items,
	}
	payload, err := job.Encode()
	if err != nil {
		return nil, false, err
	}
	if req.StartAfter != nil && req.StartAfter.After(time.Now()) {
		err = s.enqueue.EnqueueDelayed(ctx, queueName, payload, *req.StartAfter)
	} else {
		err = s.enqueue.EnqueueReady(ctx, queueName, payload)
	}
	if err != nil {
		return nil, false, fmt.Errorf("enqueueing execution %s: %w", exec.ID, err)
	}

	log.Info().
		Str("execution_id", exec.ID.String()).
		Str("workflow_id", wf.ID.String()).
		Str("queue", queueName).
		Int("items", len(items)).
		Msg("execution created")
	return exec, true, nil
}

// Get returns an execution with its per-item results.
func (s *ExecutionService) Get(ctx context.Context, id uuid.UUID) (*domain.Execution, []domain.BatchResultItem, error) {
	exec, err := s.store.GetExecution(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return exec, items, nil
}
