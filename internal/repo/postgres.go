package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

// settle writes are retried internally: a transient storage error must not
// surface to the batch executor as an item failure.
const (
	settleAttempts = 3
	settleBackoff  = 100 * time.Millisecond
)

type PG struct {
	db *pgxpool.Pool
}

func NewPG(db *pgxpool.Pool) *PG {
	return &PG{db: db}
}

var _ Store = (*PG)(nil)

func (p *PG) CreateExecution(ctx context.Context, e *domain.Execution) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO executions
			(id, workflow_id, tenant_id, status, resource_class, queue_name, items, total, dedup_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NOW(), NOW())
	`, e.ID, e.WorkflowID, e.TenantID, e.Status, e.ResourceClass.String(), e.QueueName, e.Items, e.Total, e.DedupKey)
	return err
}

const executionColumns = `
	id, workflow_id, tenant_id, status, resource_class, queue_name, items,
	succeeded, failed, total, cost_cents, revenue_cents, error,
	COALESCE(dedup_key, ''), started_at, completed_at, created_at, updated_at`

func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var e domain.Execution
	var class string
	err := row.Scan(
		&e.ID, &e.WorkflowID, &e.TenantID, &e.Status, &class, &e.QueueName, &e.Items,
		&e.Succeeded, &e.Failed, &e.Total, &e.CostCents, &e.RevenueCents, &e.Error,
		&e.DedupKey, &e.StartedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.ResourceClass = domain.ParseResourceClass(class)
	return &e, nil
}

func (p *PG) GetExecution(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	return scanExecution(p.db.QueryRow(ctx, `
		SELECT `+executionColumns+` FROM executions WHERE id=$1
	`, id))
}

func (p *PG) FindActiveExecutionByDedup(ctx context.Context, dedupKey string) (*domain.Execution, error) {
	if dedupKey == "" {
		return nil, ErrNotFound
	}
	return scanExecution(p.db.QueryRow(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE dedup_key=$1 AND status IN ('pending','processing')
		LIMIT 1
	`, dedupKey))
}

func (p *PG) MarkExecutionProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE executions
		SET status='processing', started_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PG) FinalizeExecution(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	_, err := p.db.Exec(ctx, `
		UPDATE executions
		SET status=$2, error=NULLIF($3, ''), completed_at=COALESCE(completed_at, NOW()), updated_at=NOW()
		WHERE id=$1 AND status='processing'
	`, id, status, errMsg)
	return err
}

func (p *PG) ListStaleProcessing(ctx context.Context, before time.Time) ([]domain.Execution, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE status='processing' AND updated_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (p *PG) CreateItem(ctx context.Context, executionID uuid.UUID, index int) (*domain.BatchResultItem, error) {
	_, err := p.db.Exec(ctx, `
		INSERT INTO batch_result_items (id, execution_id, item_index, status, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		ON CONFLICT (execution_id, item_index) DO NOTHING
	`, uuid.New(), executionID, index)
	if err != nil {
		return nil, err
	}
	return p.getItemByIndex(ctx, executionID, index)
}

func (p *PG) getItemByIndex(ctx context.Context, executionID uuid.UUID, index int) (*domain.BatchResultItem, error) {
	var it domain.BatchResultItem
	err := p.db.QueryRow(ctx, `
		SELECT id, execution_id, item_index, status, result_url, error, cost_cents, created_at, settled_at
		FROM batch_result_items
		WHERE execution_id=$1 AND item_index=$2
	`, executionID, index).Scan(
		&it.ID, &it.ExecutionID, &it.Index, &it.Status, &it.ResultURL, &it.Error,
		&it.CostCents, &it.CreatedAt, &it.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (p *PG) SettleItem(ctx context.Context, itemID uuid.UUID, outcome domain.ItemOutcome) error {
	var err error
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		if err = p.settleOnce(ctx, itemID, outcome); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		time.Sleep(settleBackoff * time.Duration(attempt))
	}
	return err
}

// settleOnce settles the item and bumps the owning execution's counters in
// one statement. The status='pending' guard makes the increment exactly
// once: a redelivered settle for an already-terminal item updates nothing.
func (p *PG) settleOnce(ctx context.Context, itemID uuid.UUID, outcome domain.ItemOutcome) error {
	status := domain.ItemFailed
	if outcome.Succeeded {
		status = domain.ItemSucceeded
	}
	_, err := p.db.Exec(ctx, `
		WITH settled AS (
			UPDATE batch_result_items
			SET status=$2, result_url=NULLIF($3, ''), error=NULLIF($4, ''),
			    cost_cents=$5, settled_at=NOW()
			WHERE id=$1 AND status='pending'
			RETURNING execution_id, status, cost_cents
		)
		UPDATE executions e
		SET succeeded  = e.succeeded + CASE WHEN s.status='succeeded' THEN 1 ELSE 0 END,
		    failed     = e.failed + CASE WHEN s.status='failed' THEN 1 ELSE 0 END,
		    cost_cents = e.cost_cents + s.cost_cents,
		    updated_at = NOW()
		FROM settled s
		WHERE e.id = s.execution_id
	`, itemID, status, outcome.ResultURL, outcome.Error, outcome.CostCents)
	return err
}

func (p *PG) ListItems(ctx context.Context, executionID uuid.UUID) ([]domain.BatchResultItem, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, execution_id, item_index, status, result_url, error, cost_cents, created_at, settled_at
		FROM batch_result_items
		WHERE execution_id=$1
		ORDER BY item_index
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BatchResultItem
	for rows.Next() {
		var it domain.BatchResultItem
		if err := rows.Scan(
			&it.ID, &it.ExecutionID, &it.Index, &it.Status, &it.ResultURL, &it.Error,
			&it.CostCents, &it.CreatedAt, &it.SettledAt,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *PG) CreateWorkflow(ctx context.Context, w *domain.Workflow) error {
	prompts, err := json.Marshal(w.Prompts)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO workflows (id, tenant_id, name, resource_class, prompts, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, w.ID, w.TenantID, w.Name, w.ResourceClass.String(), prompts, w.Status)
	return err
}

func (p *PG) GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	var w domain.Workflow
	var class string
	var prompts []byte
	err := p.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, resource_class, prompts, status, created_at, updated_at
		FROM workflows WHERE id=$1
	`, id).Scan(&w.ID, &w.TenantID, &w.Name, &class, &prompts, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prompts, &w.Prompts); err != nil {
		return nil, err
	}
	w.ResourceClass = domain.ParseResourceClass(class)
	return &w, nil
}

func (p *PG) CreateSchedule(ctx context.Context, s *domain.WorkflowSchedule) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO workflow_schedules (id, workflow_id, tenant_id, cron_expr, timezone, enabled, last_triggered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, s.ID, s.WorkflowID, s.TenantID, s.CronExpr, s.Timezone, s.Enabled, s.LastTriggeredAt)
	return err
}

func (p *PG) ListSchedules(ctx context.Context, enabled *bool) ([]domain.WorkflowSchedule, error) {
	query := `
		SELECT id, workflow_id, tenant_id, cron_expr, timezone, enabled, last_triggered_at, created_at
		FROM workflow_schedules`
	args := []any{}
	if enabled != nil {
		query += " WHERE enabled=$1"
		args = append(args, *enabled)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WorkflowSchedule
	for rows.Next() {
		var s domain.WorkflowSchedule
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.TenantID, &s.CronExpr, &s.Timezone, &s.Enabled, &s.LastTriggeredAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PG) UpdateScheduleLastTriggeredAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	_, err := p.db.Exec(ctx, `
		UPDATE workflow_schedules SET last_triggered_at=$2 WHERE id=$1
	`, id, t)
	return err
}
