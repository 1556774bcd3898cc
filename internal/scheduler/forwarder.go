package scheduler

import (
	"context"
	"fmt"

	"orcamentos_backend/internal/events"
	"orcamentos_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const maxTaskRetry = 5

// QuoteEventForwarder turns quote domain events into asynq tasks so
// collaborators outside this process (PDF rendering, notifications) can
// react to them.
type QuoteEventForwarder struct {
	queue Enqueuer
	log   *logger.Logger
}

func NewQuoteEventForwarder(queue Enqueuer, log *logger.Logger) *QuoteEventForwarder {
	if log == nil {
		log = logger.Nop()
	}
	return &QuoteEventForwarder{queue: queue, log: log}
}

// RegisterHandlers subscribes the forwarder to every quote event.
func (f *QuoteEventForwarder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QuoteCreated{}.EventName(), events.HandlerFunc(f.handleQuoteCreated))
	bus.Subscribe(events.QuoteUpdated{}.EventName(), events.HandlerFunc(f.handleQuoteUpdated))
	bus.Subscribe(events.QuoteDeleted{}.EventName(), events.HandlerFunc(f.handleQuoteDeleted))
}

func (f *QuoteEventForwarder) handleQuoteCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QuoteCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return f.enqueue(ctx, TaskQuoteCreated, QuoteEventPayload{
		QuoteID:        e.QuoteID,
		CompanyID:      e.CompanyID,
		DocumentNumber: e.DocumentNumber,
		Status:         e.Status,
		Total:          e.Total.StringFixed(2),
		UserID:         e.UserID,
		RequestID:      e.RequestID,
		OccurredAt:     e.OccurredAt(),
	})
}

func (f *QuoteEventForwarder) handleQuoteUpdated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QuoteUpdated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return f.enqueue(ctx, TaskQuoteUpdated, QuoteEventPayload{
		QuoteID:        e.QuoteID,
		CompanyID:      e.CompanyID,
		DocumentNumber: e.DocumentNumber,
		Status:         e.Status,
		Total:          e.Total.StringFixed(2),
		UserID:         e.UserID,
		OccurredAt:     e.OccurredAt(),
	})
}

func (f *QuoteEventForwarder) handleQuoteDeleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QuoteDeleted)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return f.enqueue(ctx, TaskQuoteDeleted, QuoteEventPayload{
		QuoteID:    e.QuoteID,
		CompanyID:  e.CompanyID,
		UserID:     e.UserID,
		OccurredAt: e.OccurredAt(),
	})
}

func (f *QuoteEventForwarder) enqueue(ctx context.Context, taskType string, payload QuoteEventPayload) error {
	if f.queue == nil {
		return nil
	}

	task, err := NewQuoteEventTask(taskType, payload)
	if err != nil {
		return err
	}

	info, err := f.queue.EnqueueContext(ctx, task, asynq.MaxRetry(maxTaskRetry))
	if err != nil {
		f.log.Warn("quote task enqueue failed", "task", taskType, "quoteId", payload.QuoteID, "error", err)
		return err
	}
	f.log.Debug("quote task enqueued", "task", taskType, "taskId", info.ID, "quoteId", payload.QuoteID)
	return nil
}
