package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Quote is the database model for a quote header
type Quote struct {
	ID                int64           `db:"id"`
	CompanyID         int64           `db:"company_id"`
	ClientID          *int64          `db:"client_id"`
	UserID            int64           `db:"user_id"`
	DocumentNumber    int64           `db:"document_number"`
	Reference         string          `db:"reference"`
	Notes             string          `db:"notes"`
	InternalNotes     string          `db:"internal_notes"`
	QuoteDate         time.Time       `db:"quote_date"`
	ValidityDate      *time.Time      `db:"validity_date"`
	LeadStartDate     *time.Time      `db:"lead_start_date"`
	LeadDurationDays  int             `db:"lead_duration_days"`
	TaxPercent        decimal.Decimal `db:"tax_percent"`
	FreightAmount     decimal.Decimal `db:"freight_amount"`
	DiscountMode      string          `db:"discount_mode"`
	DiscountValue     decimal.Decimal `db:"discount_value"`
	SubtotalServices  decimal.Decimal `db:"subtotal_services"`
	SubtotalMaterials decimal.Decimal `db:"subtotal_materials"`
	Subtotal          decimal.Decimal `db:"subtotal"`
	TaxAmount         decimal.Decimal `db:"tax_amount"`
	DiscountAmount    decimal.Decimal `db:"discount_amount"`
	Total             decimal.Decimal `db:"total"`
	Status            string          `db:"status"`
	PaymentTerms      string          `db:"payment_terms"`
	PaymentMethods    string          `db:"payment_methods"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	RemovedAt         *time.Time      `db:"removed_at"`
}

// QuoteSummary is a listed quote with the display names of its references
type QuoteSummary struct {
	Quote
	CompanyName string  `db:"company_name"`
	ClientName  *string `db:"client_name"`
}

// QuoteItem is the database model for a quote line item
type QuoteItem struct {
	ID          int64           `db:"id"`
	QuoteID     int64           `db:"quote_id"`
	Kind        string          `db:"kind"`
	Description string          `db:"description"`
	Detail      string          `db:"detail"`
	Quantity    decimal.Decimal `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	LineTotal   decimal.Decimal `db:"line_total"`
	SortOrder   int             `db:"sort_order"`
}

// ListParams contains parameters for listing quotes. Nil filters match all.
type ListParams struct {
	CompanyID *int64
	Status    *string
}

// KPIs is the aggregate summary over non-removed quotes
type KPIs struct {
	Count         int64
	ByStatus      map[string]int64
	TotalValue    decimal.Decimal
	ApprovedValue decimal.Decimal
}

const (
	quoteNotFoundMsg        = "quote not found"
	documentNumberTakenMsg  = "document number already in use for this company"
	statusApproved          = "approved"
	uniqueViolationCode     = "23505"
	documentNumberUniqueKey = "quotes_company_document_number_key"
)

func cloneQuote(q *Quote) *Quote {
	c := *q
	if q.ClientID != nil {
		v := *q.ClientID
		c.ClientID = &v
	}
	return &c
}

func cloneItems(items []QuoteItem) []QuoteItem {
	if items == nil {
		return nil
	}
	out := make([]QuoteItem, len(items))
	copy(out, items)
	return out
}
