package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Execution statuses. completed/failed are terminal.
const (
	ExecutionPending    = "pending"
	ExecutionProcessing = "processing"
	ExecutionCompleted  = "completed"
	ExecutionFailed     = "failed"
)

type Execution struct {
	ID            uuid.UUID       `json:"id"`
	WorkflowID    uuid.UUID       `json:"workflow_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Status        string          `json:"status"`
	ResourceClass ResourceClass   `json:"resource_class"`
	QueueName     string          `json:"queue_name"`
	Items         json.RawMessage `json:"items"` // snapshot of the input item list
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Total         int             `json:"total"`
	CostCents     int64           `json:"cost_cents"`
	RevenueCents  int64           `json:"revenue_cents"`
	Error         *string         `json:"error"`
	DedupKey      string          `json:"dedup_key,omitempty"`
	StartedAt     *time.Time      `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Terminal reports whether the execution has reached a final status.
func (e *Execution) Terminal() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionFailed
}

// BatchSummary is the aggregate outcome of one batch run.
type BatchSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}
