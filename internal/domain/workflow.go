package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow statuses.
const (
	WorkflowActive   = "active"
	WorkflowArchived = "archived"
)

// Workflow is a stored template from which executions are created. The
// prompt list is snapshotted into each execution at creation time so a
// later edit never changes an in-flight run.
type Workflow struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	Name          string        `json:"name"`
	ResourceClass ResourceClass `json:"resource_class"`
	Prompts       []string      `json:"prompts"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
