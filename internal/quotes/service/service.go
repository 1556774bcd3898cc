package service

import (
	"context"
	"strconv"
	"time"

	"orcamentos_backend/internal/events"
	"orcamentos_backend/internal/quotes/repository"
	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/apperr"
	"orcamentos_backend/platform/idempotency"
	"orcamentos_backend/platform/logger"
)

const createScope = "quotes:create"

// Store is the aggregate persistence a quotes service needs.
// Implemented by repository.Repository and repository.Memory.
type Store interface {
	Create(ctx context.Context, quote *repository.Quote, items []repository.QuoteItem, override *int64) (int64, int64, error)
	Update(ctx context.Context, quote *repository.Quote, items []repository.QuoteItem) error
	Get(ctx context.Context, id, companyID int64) (*repository.Quote, []repository.QuoteItem, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.QuoteSummary, error)
	SoftDelete(ctx context.Context, id, companyID int64) error
	KPIs(ctx context.Context, companyID int64) (*repository.KPIs, error)
	ListActivity(ctx context.Context, quoteID, companyID int64) ([]repository.Activity, error)
}

// Actor identifies who issues a command and for which tenant
type Actor struct {
	CompanyID int64
	UserID    int64
	RequestID string
}

// Service provides business logic for quotes
type Service struct {
	store Store
	refs  References
	guard idempotency.Guard
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

// New creates a new quotes service
func New(store Store, refs References, guard idempotency.Guard, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store: store,
		refs:  refs,
		guard: guard,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// Create validates the request, claims the request id and persists a new
// quote with a freshly allocated document number.
func (s *Service) Create(ctx context.Context, actor Actor, req transport.CreateQuoteRequest) (*transport.CreatedQuoteResponse, error) {
	quote, items, err := s.buildAggregate(actor.CompanyID, actor.UserID, req)
	if err != nil {
		return nil, err
	}
	if err := s.validateReferences(ctx, actor.CompanyID, req.ClientID); err != nil {
		return nil, err
	}

	key := idempotency.Key(createScope, strconv.FormatInt(actor.CompanyID, 10), actor.RequestID)
	succeeded := false
	if key != "" && s.guard != nil {
		token, ok, err := s.guard.TryBegin(ctx, key)
		if err != nil {
			return nil, apperr.Internal("failed to register request", err)
		}
		if !ok {
			s.log.WithContext(ctx).DuplicateRequest("quotes.create", actor.RequestID, actor.CompanyID)
			return nil, apperr.Conflict("duplicate request: this request id was already used")
		}
		// Every exit short of success, panics included, frees the key.
		defer func() {
			if succeeded {
				s.guard.Complete(ctx, key, token)
				return
			}
			s.guard.Release(ctx, key, token)
		}()
	}

	id, number, err := s.store.Create(ctx, quote, items, req.DocumentNumber)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("quote created",
		"quoteId", id,
		"documentNumber", number,
		"items", len(items),
		"total", quote.Total.StringFixed(2),
	)
	s.publish(ctx, events.QuoteCreated{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        id,
		CompanyID:      actor.CompanyID,
		ClientID:       derefID(req.ClientID),
		DocumentNumber: number,
		Status:         quote.Status,
		Total:          quote.Total,
		UserID:         actor.UserID,
		RequestID:      actor.RequestID,
	})

	succeeded = true
	return &transport.CreatedQuoteResponse{ID: id, DocumentNumber: number, Total: quote.Total}, nil
}

// Update replaces the header and the whole item collection of a quote.
func (s *Service) Update(ctx context.Context, actor Actor, id int64, req transport.UpdateQuoteRequest) (*transport.QuoteResponse, error) {
	quote, items, err := s.buildAggregate(actor.CompanyID, actor.UserID, req)
	if err != nil {
		return nil, err
	}
	if err := s.validateReferences(ctx, actor.CompanyID, req.ClientID); err != nil {
		return nil, err
	}

	quote.ID = id
	if err := s.store.Update(ctx, quote, items); err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("quote updated", "quoteId", id, "status", quote.Status)
	s.publish(ctx, events.QuoteUpdated{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        id,
		CompanyID:      actor.CompanyID,
		DocumentNumber: quote.DocumentNumber,
		Status:         quote.Status,
		Total:          quote.Total,
		UserID:         actor.UserID,
	})

	return s.GetByID(ctx, actor.CompanyID, id)
}

// Delete soft-deletes a quote. Its document number stays taken.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	if err := s.store.SoftDelete(ctx, id, actor.CompanyID); err != nil {
		return err
	}

	s.log.WithContext(ctx).Info("quote deleted", "quoteId", id)
	s.publish(ctx, events.QuoteDeleted{
		BaseEvent: events.NewBaseEvent(),
		QuoteID:   id,
		CompanyID: actor.CompanyID,
		UserID:    actor.UserID,
	})
	return nil
}

// GetByID returns a quote with its items split into services and materials.
func (s *Service) GetByID(ctx context.Context, companyID, id int64) (*transport.QuoteResponse, error) {
	quote, items, err := s.store.Get(ctx, id, companyID)
	if err != nil {
		return nil, err
	}
	resp := toQuoteResponse(quote, items)
	return &resp, nil
}

// List returns live quotes newest first. A nil companyID lists every company.
func (s *Service) List(ctx context.Context, companyID *int64, req transport.ListQuotesRequest) ([]transport.QuoteSummaryResponse, error) {
	params := repository.ListParams{CompanyID: companyID}
	if req.Status != "" {
		status := string(req.Status)
		params.Status = &status
	}

	rows, err := s.store.List(ctx, params)
	if err != nil {
		return nil, err
	}

	result := make([]transport.QuoteSummaryResponse, len(rows))
	for i, row := range rows {
		result[i] = toSummaryResponse(row)
	}
	return result, nil
}

// KPIs summarizes the live quotes of a company.
func (s *Service) KPIs(ctx context.Context, companyID int64) (*transport.QuoteKPIResponse, error) {
	kpis, err := s.store.KPIs(ctx, companyID)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[transport.QuoteStatus]int64, len(kpis.ByStatus))
	for status, count := range kpis.ByStatus {
		byStatus[transport.QuoteStatus(status)] = count
	}
	return &transport.QuoteKPIResponse{
		Count:         kpis.Count,
		ByStatus:      byStatus,
		TotalValue:    kpis.TotalValue.Round(2),
		ApprovedValue: kpis.ApprovedValue.Round(2),
	}, nil
}

// Activity returns the recorded lifecycle history of a quote, oldest first.
// Entries appear once the worker has consumed the corresponding task.
func (s *Service) Activity(ctx context.Context, companyID, quoteID int64) ([]transport.QuoteActivityResponse, error) {
	rows, err := s.store.ListActivity(ctx, quoteID, companyID)
	if err != nil {
		return nil, err
	}

	result := make([]transport.QuoteActivityResponse, len(rows))
	for i, row := range rows {
		result[i] = toActivityResponse(row)
	}
	return result, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
