package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowSchedule triggers recurring executions of a workflow on a cron
// expression. LastTriggeredAt drives the scheduler's catch-up window.
type WorkflowSchedule struct {
	ID              uuid.UUID  `json:"id"`
	WorkflowID      uuid.UUID  `json:"workflow_id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	CronExpr        string     `json:"cron_expression"`
	Timezone        string     `json:"timezone"`
	Enabled         bool       `json:"enabled"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
}
