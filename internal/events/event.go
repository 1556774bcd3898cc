// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"orcamentos_backend/platform/events"

	"github.com/shopspring/decimal"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteCreated is published after a quote and its items are committed.
type QuoteCreated struct {
	BaseEvent
	QuoteID        int64           `json:"quoteId"`
	CompanyID      int64           `json:"companyId"`
	ClientID       int64           `json:"clientId"`
	DocumentNumber int64           `json:"documentNumber"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	UserID         int64           `json:"userId,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
}

func (e QuoteCreated) EventName() string { return "quotes.quote.created" }

// QuoteUpdated is published after a quote header and items were replaced.
type QuoteUpdated struct {
	BaseEvent
	QuoteID        int64           `json:"quoteId"`
	CompanyID      int64           `json:"companyId"`
	DocumentNumber int64           `json:"documentNumber"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	UserID         int64           `json:"userId,omitempty"`
}

func (e QuoteUpdated) EventName() string { return "quotes.quote.updated" }

// QuoteDeleted is published when a quote is soft-deleted.
type QuoteDeleted struct {
	BaseEvent
	QuoteID   int64 `json:"quoteId"`
	CompanyID int64 `json:"companyId"`
	UserID    int64 `json:"userId,omitempty"`
}

func (e QuoteDeleted) EventName() string { return "quotes.quote.deleted" }
