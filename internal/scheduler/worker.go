package scheduler

import (
	"context"
	"fmt"

	"orcamentos_backend/internal/quotes/repository"
	"orcamentos_backend/platform/config"
	"orcamentos_backend/platform/logger"
	"orcamentos_backend/platform/redisx"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// ActivityRecorder persists delivered quote events.
// Implemented by repository.Repository and repository.Memory.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, activity repository.Activity) (bool, error)
}

// Worker consumes quote lifecycle tasks and writes them to the activity log.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	recorder ActivityRecorder
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, recorder ActivityRecorder, log *logger.Logger) (*Worker, error) {
	opt, err := redisx.Options(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(redisClientOpt(opt), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(recorder, log)
	w.server = server
	return w, nil
}

func newWorker(recorder ActivityRecorder, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{
		mux:      asynq.NewServeMux(),
		recorder: recorder,
		log:      log,
	}
	w.mux.HandleFunc(TaskQuoteCreated, w.handleQuoteEvent)
	w.mux.HandleFunc(TaskQuoteUpdated, w.handleQuoteEvent)
	w.mux.HandleFunc(TaskQuoteDeleted, w.handleQuoteEvent)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("quote worker stopped", "error", err)
	}
}

func (w *Worker) handleQuoteEvent(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseQuoteEventPayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if payload.QuoteID <= 0 || payload.CompanyID <= 0 {
		return fmt.Errorf("%s payload without quote or company: %w", task.Type(), asynq.SkipRetry)
	}

	activity, err := activityFromPayload(task.Type(), payload)
	if err != nil {
		return fmt.Errorf("%s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	taskID, ok := asynq.GetTaskID(ctx)
	if !ok || taskID == "" {
		taskID = uuid.NewString()
	}
	activity.TaskID = taskID

	inserted, err := w.recorder.RecordActivity(ctx, activity)
	if err != nil {
		w.log.Warn("quote activity not recorded", "task", task.Type(), "taskId", taskID, "quoteId", payload.QuoteID, "error", err)
		return err
	}
	if !inserted {
		w.log.Debug("quote activity already recorded", "taskId", taskID, "quoteId", payload.QuoteID)
		return nil
	}
	w.log.Info("quote activity recorded", "task", task.Type(), "quoteId", payload.QuoteID, "companyId", payload.CompanyID)
	return nil
}

func activityFromPayload(taskType string, p QuoteEventPayload) (repository.Activity, error) {
	a := repository.Activity{
		QuoteID:    p.QuoteID,
		CompanyID:  p.CompanyID,
		EventType:  taskType,
		OccurredAt: p.OccurredAt.UTC(),
	}
	if p.DocumentNumber > 0 {
		a.DocumentNumber = &p.DocumentNumber
	}
	if p.Status != "" {
		a.Status = &p.Status
	}
	if p.UserID > 0 {
		a.UserID = &p.UserID
	}
	if p.RequestID != "" {
		a.RequestID = &p.RequestID
	}
	if p.Total != "" {
		total, err := decimal.NewFromString(p.Total)
		if err != nil {
			return repository.Activity{}, fmt.Errorf("invalid total %q", p.Total)
		}
		a.Total = decimal.NullDecimal{Decimal: total, Valid: true}
	}
	return a, nil
}
