package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ItemInput is one generation request within a job.
type ItemInput struct {
	Prompt string `json:"prompt"`
}

// JobMessage is the queue payload handed from the API/scheduler side to a
// worker. Delivery is at-least-once; the Result Store's idempotent
// CreateItem/SettleItem contract makes redelivery safe.
type JobMessage struct {
	ExecutionID   uuid.UUID   `json:"execution_id"`
	WorkflowID    uuid.UUID   `json:"workflow_id"`
	TenantID      uuid.UUID   `json:"tenant_id"`
	ResourceClass string      `json:"resource_class"`
	QueueName     string      `json:"queue_name"`
	Items         []ItemInput `json:"items"`
}

func (m JobMessage) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeJobMessage(raw string) (JobMessage, error) {
	var m JobMessage
	err := json.Unmarshal([]byte(raw), &m)
	return m, err
}
