// Package repo is the durable persistence layer: executions and their
// per-item results, plus workflow templates and schedules. Per-item
// settlement is idempotent so at-least-once job delivery never
// double-counts completed work.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

var ErrNotFound = errors.New("repo: not found")

type Store interface {
	// Executions.
	CreateExecution(ctx context.Context, e *domain.Execution) error
	GetExecution(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	FindActiveExecutionByDedup(ctx context.Context, dedupKey string) (*domain.Execution, error)
	// MarkExecutionProcessing transitions pending→processing and sets
	// started_at, exactly once. Returns false when the execution was not
	// pending (already started or terminal).
	MarkExecutionProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	// FinalizeExecution transitions processing→status and sets
	// completed_at, exactly once.
	FinalizeExecution(ctx context.Context, id uuid.UUID, status, errMsg string) error
	// ListStaleProcessing returns executions still processing whose last
	// update is older than before; the reaper re-enqueues them.
	ListStaleProcessing(ctx context.Context, before time.Time) ([]domain.Execution, error)

	// Batch result items.
	// CreateItem is idempotent by (executionID, index): a second call
	// returns the existing row.
	CreateItem(ctx context.Context, executionID uuid.UUID, index int) (*domain.BatchResultItem, error)
	// SettleItem writes the terminal outcome and bumps the execution's
	// aggregate counters. Settling an already-terminal item is a no-op;
	// the counter increment happens exactly once per item.
	SettleItem(ctx context.Context, itemID uuid.UUID, outcome domain.ItemOutcome) error
	ListItems(ctx context.Context, executionID uuid.UUID) ([]domain.BatchResultItem, error)

	// Workflows and schedules.
	CreateWorkflow(ctx context.Context, w *domain.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	CreateSchedule(ctx context.Context, s *domain.WorkflowSchedule) error
	ListSchedules(ctx context.Context, enabled *bool) ([]domain.WorkflowSchedule, error)
	UpdateScheduleLastTriggeredAt(ctx context.Context, id uuid.UUID, t time.Time) error
}
