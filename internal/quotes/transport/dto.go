package transport

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus defines the status of a quote. Any status may be assigned at
// any time; there is no enforced transition graph.
type QuoteStatus string

const (
	QuoteStatusDraft            QuoteStatus = "draft"
	QuoteStatusPending          QuoteStatus = "pending"
	QuoteStatusAwaitingApproval QuoteStatus = "awaiting_approval"
	QuoteStatusApproved         QuoteStatus = "approved"
	QuoteStatusRejected         QuoteStatus = "rejected"
	QuoteStatusCancelled        QuoteStatus = "cancelled"
)

// DiscountMode selects what the discount value applies to
type DiscountMode string

const (
	DiscountFixedAmount      DiscountMode = "fixed_amount"
	DiscountPercentServices  DiscountMode = "percent_services"
	DiscountPercentMaterials DiscountMode = "percent_materials"
)

// ItemKind distinguishes service lines from material lines
type ItemKind string

const (
	ItemKindService  ItemKind = "service"
	ItemKindMaterial ItemKind = "material"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// QuoteItemRequest is the input for a single line item. The line total is
// always recomputed server-side.
type QuoteItemRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Detail      string          `json:"detail" validate:"max=2000"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0"`
}

// QuoteRequest is the request body for creating or updating a quote.
// Derived totals are never read from the caller.
type QuoteRequest struct {
	ClientID         *int64             `json:"clientId" validate:"omitempty,gt=0"`
	DocumentNumber   *int64             `json:"documentNumber" validate:"omitempty,gt=0"`
	Reference        string             `json:"reference" validate:"max=200"`
	Notes            string             `json:"notes"`
	InternalNotes    string             `json:"internalNotes"`
	QuoteDate        *time.Time         `json:"quoteDate"`
	ValidityDate     *time.Time         `json:"validityDate"`
	LeadStartDate    *time.Time         `json:"leadStartDate"`
	LeadDurationDays int                `json:"leadDurationDays" validate:"min=0"`
	TaxPercent       decimal.Decimal    `json:"taxPercent" validate:"gte=0,lte=100"`
	FreightAmount    decimal.Decimal    `json:"freightAmount" validate:"gte=0"`
	DiscountMode     DiscountMode       `json:"discountMode" validate:"omitempty,oneof=fixed_amount percent_services percent_materials"`
	DiscountValue    decimal.Decimal    `json:"discountValue" validate:"gte=0"`
	Status           QuoteStatus        `json:"status" validate:"omitempty,oneof=draft pending awaiting_approval approved rejected cancelled"`
	PaymentTerms     string             `json:"paymentTerms"`
	PaymentMethods   string             `json:"paymentMethods"`
	Services         []QuoteItemRequest `json:"servicos" validate:"omitempty,dive"`
	Materials        []QuoteItemRequest `json:"materiais" validate:"omitempty,dive"`
}

// CreateQuoteRequest is the request body for creating a new quote
type CreateQuoteRequest = QuoteRequest

// UpdateQuoteRequest is the request body for updating a quote. The document
// number is ignored on update.
type UpdateQuoteRequest = QuoteRequest

// ListQuotesRequest holds the list filters read from the query string
type ListQuotesRequest struct {
	Status QuoteStatus `form:"status" validate:"omitempty,oneof=draft pending awaiting_approval approved rejected cancelled"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// QuoteItemResponse is a persisted line item
type QuoteItemResponse struct {
	ID          int64           `json:"id"`
	Kind        ItemKind        `json:"kind"`
	Description string          `json:"description"`
	Detail      string          `json:"detail"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// QuoteTotals carries the derived financial figures of a quote
type QuoteTotals struct {
	SubtotalServices  decimal.Decimal `json:"subtotalServices"`
	SubtotalMaterials decimal.Decimal `json:"subtotalMaterials"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxAmount         decimal.Decimal `json:"taxAmount"`
	DiscountAmount    decimal.Decimal `json:"discountAmount"`
	Total             decimal.Decimal `json:"total"`
}

// QuoteSummaryResponse is one row of the quote list
type QuoteSummaryResponse struct {
	ID             int64           `json:"id"`
	DocumentNumber int64           `json:"documentNumber"`
	CompanyID      int64           `json:"companyId"`
	CompanyName    string          `json:"companyName"`
	ClientID       *int64          `json:"clientId,omitempty"`
	ClientName     *string         `json:"clientName,omitempty"`
	Reference      string          `json:"reference"`
	QuoteDate      time.Time       `json:"quoteDate"`
	ValidityDate   *time.Time      `json:"validityDate,omitempty"`
	Status         QuoteStatus     `json:"status"`
	Total          decimal.Decimal `json:"total"`
}

// QuoteResponse is the full quote with items split by kind
type QuoteResponse struct {
	ID               int64               `json:"id"`
	DocumentNumber   int64               `json:"documentNumber"`
	CompanyID        int64               `json:"companyId"`
	ClientID         *int64              `json:"clientId,omitempty"`
	UserID           int64               `json:"userId"`
	Reference        string              `json:"reference"`
	Notes            string              `json:"notes"`
	InternalNotes    string              `json:"internalNotes"`
	QuoteDate        time.Time           `json:"quoteDate"`
	ValidityDate     *time.Time          `json:"validityDate,omitempty"`
	LeadStartDate    *time.Time          `json:"leadStartDate,omitempty"`
	LeadDurationDays int                 `json:"leadDurationDays"`
	TaxPercent       decimal.Decimal     `json:"taxPercent"`
	FreightAmount    decimal.Decimal     `json:"freightAmount"`
	DiscountMode     DiscountMode        `json:"discountMode"`
	DiscountValue    decimal.Decimal     `json:"discountValue"`
	Totals           QuoteTotals         `json:"totals"`
	Status           QuoteStatus         `json:"status"`
	PaymentTerms     string              `json:"paymentTerms"`
	PaymentMethods   string              `json:"paymentMethods"`
	Services         []QuoteItemResponse `json:"services"`
	Materials        []QuoteItemResponse `json:"materials"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// CreatedQuoteResponse is returned by a successful create
type CreatedQuoteResponse struct {
	ID             int64           `json:"id"`
	DocumentNumber int64           `json:"documentNumber"`
	Total          decimal.Decimal `json:"total"`
}

// QuoteKPIResponse summarizes the live quotes of a company
type QuoteKPIResponse struct {
	Count         int64                 `json:"count"`
	ByStatus      map[QuoteStatus]int64 `json:"byStatus"`
	TotalValue    decimal.Decimal       `json:"totalValue"`
	ApprovedValue decimal.Decimal       `json:"approvedValue"`
}

// QuoteActivityResponse is one entry of a quote's lifecycle history
type QuoteActivityResponse struct {
	EventType      string           `json:"eventType"`
	DocumentNumber *int64           `json:"documentNumber,omitempty"`
	Status         *string          `json:"status,omitempty"`
	Total          *decimal.Decimal `json:"total,omitempty"`
	UserID         *int64           `json:"userId,omitempty"`
	RequestID      *string          `json:"requestId,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}
