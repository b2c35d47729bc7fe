package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchResultItem statuses. succeeded/failed are terminal; an item settles
// exactly once.
const (
	ItemPending   = "pending"
	ItemSucceeded = "succeeded"
	ItemFailed    = "failed"
)

// BatchResultItem is one unit of work within an execution. Index is
// zero-based, contiguous per execution and never reassigned.
type BatchResultItem struct {
	ID          uuid.UUID  `json:"id"`
	ExecutionID uuid.UUID  `json:"execution_id"`
	Index       int        `json:"index"`
	Status      string     `json:"status"`
	ResultURL   *string    `json:"result_url"`
	Error       *string    `json:"error"`
	CostCents   int64      `json:"cost_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at"`
}

func (i *BatchResultItem) Terminal() bool {
	return i.Status == ItemSucceeded || i.Status == ItemFailed
}

// ItemOutcome is the terminal result handed to the Result Store when an
// item settles.
type ItemOutcome struct {
	Succeeded bool
	ResultURL string
	Error     string
	CostCents int64
}
