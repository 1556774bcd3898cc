package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskQuoteCreated = "quotes.created"

const TaskQuoteUpdated = "quotes.updated"

const TaskQuoteDeleted = "quotes.deleted"

// QuoteEventPayload is the body of every quote lifecycle task. Money is
// carried as a decimal string.
type QuoteEventPayload struct {
	QuoteID        int64     `json:"quoteId"`
	CompanyID      int64     `json:"companyId"`
	DocumentNumber int64     `json:"documentNumber,omitempty"`
	Status         string    `json:"status,omitempty"`
	Total          string    `json:"total,omitempty"`
	UserID         int64     `json:"userId,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func NewQuoteEventTask(taskType string, payload QuoteEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseQuoteEventPayload(task *asynq.Task) (QuoteEventPayload, error) {
	var payload QuoteEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QuoteEventPayload{}, err
	}
	return payload, nil
}
