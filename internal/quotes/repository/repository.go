package repository

import (
	"context"
	"errors"
	"fmt"

	"orcamentos_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Queries ───────────────────────────────────────────────────────────────────

const quoteColumns = `
	q.id, q.company_id, q.client_id, q.user_id, q.document_number,
	q.reference, q.notes, q.internal_notes,
	q.quote_date, q.validity_date, q.lead_start_date, q.lead_duration_days,
	q.tax_percent, q.freight_amount, q.discount_mode, q.discount_value,
	q.subtotal_services, q.subtotal_materials, q.subtotal, q.tax_amount, q.discount_amount, q.total,
	q.status, q.payment_terms, q.payment_methods,
	q.created_at, q.updated_at, q.removed_at`

const insertQuoteQuery = `
	INSERT INTO quotes (
		company_id, client_id, user_id, document_number,
		reference, notes, internal_notes,
		quote_date, validity_date, lead_start_date, lead_duration_days,
		tax_percent, freight_amount, discount_mode, discount_value,
		subtotal_services, subtotal_materials, subtotal, tax_amount, discount_amount, total,
		status, payment_terms, payment_methods
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	RETURNING id, created_at, updated_at`

const lockQuoteQuery = `
	SELECT user_id, document_number, created_at FROM quotes
	WHERE id = $1 AND company_id = $2 AND removed_at IS NULL
	FOR UPDATE`

const updateQuoteQuery = `
	UPDATE quotes SET
		client_id = $3, reference = $4, notes = $5, internal_notes = $6,
		quote_date = $7, validity_date = $8, lead_start_date = $9, lead_duration_days = $10,
		tax_percent = $11, freight_amount = $12, discount_mode = $13, discount_value = $14,
		subtotal_services = $15, subtotal_materials = $16, subtotal = $17,
		tax_amount = $18, discount_amount = $19, total = $20,
		status = $21, payment_terms = $22, payment_methods = $23, updated_at = now()
	WHERE id = $1 AND company_id = $2
	RETURNING updated_at`

const deleteItemsQuery = `DELETE FROM quote_items WHERE quote_id = $1`

const insertItemQuery = `
	INSERT INTO quote_items (
		quote_id, kind, description, detail, quantity, unit_price, line_total, sort_order
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

const getQuoteQuery = `
	SELECT ` + quoteColumns + `
	FROM quotes q
	WHERE q.id = $1 AND q.company_id = $2 AND q.removed_at IS NULL`

const listItemsQuery = `
	SELECT id, quote_id, kind, description, detail, quantity, unit_price, line_total, sort_order
	FROM quote_items
	WHERE quote_id = $1
	ORDER BY kind, sort_order, id`

const listQuotesQuery = `
	SELECT ` + quoteColumns + `, co.name AS company_name, cl.name AS client_name
	FROM quotes q
	JOIN companies co ON co.id = q.company_id
	LEFT JOIN clients cl ON cl.id = q.client_id
	WHERE q.removed_at IS NULL
		AND ($1::bigint IS NULL OR q.company_id = $1)
		AND ($2::text IS NULL OR q.status = $2)
	ORDER BY q.created_at DESC, q.id DESC`

const softDeleteQuery = `
	UPDATE quotes SET removed_at = now(), updated_at = now()
	WHERE id = $1 AND company_id = $2 AND removed_at IS NULL`

const kpiQuery = `
	SELECT status, COUNT(*), COALESCE(SUM(total), 0)
	FROM quotes
	WHERE company_id = $1 AND removed_at IS NULL
	GROUP BY status`

// ── Repository ────────────────────────────────────────────────────────────────

// Repository persists quote aggregates in Postgres
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new quotes repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a quote header with a freshly allocated document number and
// its items in a single transaction. When override is set the allocator is
// bypassed and the number is only checked for uniqueness.
func (r *Repository) Create(ctx context.Context, quote *Quote, items []QuoteItem, override *int64) (int64, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var number int64
	if override != nil {
		if err := reserveNumber(ctx, tx, quote.CompanyID, *override); err != nil {
			return 0, 0, err
		}
		number = *override
	} else {
		if number, err = nextNumber(ctx, tx, quote.CompanyID); err != nil {
			return 0, 0, err
		}
	}
	quote.DocumentNumber = number

	if err := tx.QueryRow(ctx, insertQuoteQuery,
		quote.CompanyID, quote.ClientID, quote.UserID, quote.DocumentNumber,
		quote.Reference, quote.Notes, quote.InternalNotes,
		quote.QuoteDate, quote.ValidityDate, quote.LeadStartDate, quote.LeadDurationDays,
		quote.TaxPercent, quote.FreightAmount, quote.DiscountMode, quote.DiscountValue,
		quote.SubtotalServices, quote.SubtotalMaterials, quote.Subtotal, quote.TaxAmount, quote.DiscountAmount, quote.Total,
		quote.Status, quote.PaymentTerms, quote.PaymentMethods,
	).Scan(&quote.ID, &quote.CreatedAt, &quote.UpdatedAt); err != nil {
		return 0, 0, mapWriteError("failed to insert quote", err)
	}

	if err := insertItems(ctx, tx, quote.ID, items); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, mapWriteError("failed to commit quote", err)
	}
	return quote.ID, quote.DocumentNumber, nil
}

// Update replaces the header fields and the whole item collection of a live
// quote. The document number and the owning user are never changed.
func (r *Repository) Update(ctx context.Context, quote *Quote, items []QuoteItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, lockQuoteQuery, quote.ID, quote.CompanyID).Scan(&quote.UserID, &quote.DocumentNumber, &quote.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(quoteNotFoundMsg)
		}
		return fmt.Errorf("failed to lock quote: %w", err)
	}

	if err := tx.QueryRow(ctx, updateQuoteQuery,
		quote.ID, quote.CompanyID, quote.ClientID,
		quote.Reference, quote.Notes, quote.InternalNotes,
		quote.QuoteDate, quote.ValidityDate, quote.LeadStartDate, quote.LeadDurationDays,
		quote.TaxPercent, quote.FreightAmount, quote.DiscountMode, quote.DiscountValue,
		quote.SubtotalServices, quote.SubtotalMaterials, quote.Subtotal,
		quote.TaxAmount, quote.DiscountAmount, quote.Total,
		quote.Status, quote.PaymentTerms, quote.PaymentMethods,
	).Scan(&quote.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}

	if _, err := tx.Exec(ctx, deleteItemsQuery, quote.ID); err != nil {
		return fmt.Errorf("failed to delete old quote items: %w", err)
	}
	if err := insertItems(ctx, tx, quote.ID, items); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertItems(ctx context.Context, tx pgx.Tx, quoteID int64, items []QuoteItem) error {
	for i := range items {
		items[i].QuoteID = quoteID
		it := &items[i]
		if err := tx.QueryRow(ctx, insertItemQuery,
			it.QuoteID, it.Kind, it.Description, it.Detail,
			it.Quantity, it.UnitPrice, it.LineTotal, it.SortOrder,
		).Scan(&it.ID); err != nil {
			return fmt.Errorf("failed to insert quote item: %w", err)
		}
	}
	return nil
}

// Get retrieves a live quote and its items scoped to a company
func (r *Repository) Get(ctx context.Context, id, companyID int64) (*Quote, []QuoteItem, error) {
	var q Quote
	if err := scanQuote(r.pool.QueryRow(ctx, getQuoteQuery, id, companyID), &q); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.NotFound(quoteNotFoundMsg)
		}
		return nil, nil, fmt.Errorf("failed to get quote: %w", err)
	}

	rows, err := r.pool.Query(ctx, listItemsQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query quote items: %w", err)
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		var it QuoteItem
		if err := rows.Scan(
			&it.ID, &it.QuoteID, &it.Kind, &it.Description, &it.Detail,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.SortOrder,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan quote item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate quote items: %w", err)
	}
	return &q, items, nil
}

// List retrieves live quote headers, newest first
func (r *Repository) List(ctx context.Context, params ListParams) ([]QuoteSummary, error) {
	rows, err := r.pool.Query(ctx, listQuotesQuery, params.CompanyID, params.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	result := make([]QuoteSummary, 0)
	for rows.Next() {
		var s QuoteSummary
		if err := scanQuote(rows, &s.Quote, &s.CompanyName, &s.ClientName); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}
	return result, nil
}

// SoftDelete sets the tombstone of a live quote. Items and the document
// number are kept.
func (r *Repository) SoftDelete(ctx context.Context, id, companyID int64) error {
	result, err := r.pool.Exec(ctx, softDeleteQuery, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	return nil
}

// KPIs aggregates live quotes of a company per status
func (r *Repository) KPIs(ctx context.Context, companyID int64) (*KPIs, error) {
	rows, err := r.pool.Query(ctx, kpiQuery, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quote kpis: %w", err)
	}
	defer rows.Close()

	kpis := &KPIs{ByStatus: make(map[string]int64)}
	for rows.Next() {
		var (
			status string
			count  int64
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan quote kpis: %w", err)
		}
		kpis.add(status, count, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quote kpis: %w", err)
	}
	return kpis, nil
}

func (k *KPIs) add(status string, count int64, sum decimal.Decimal) {
	k.Count += count
	k.ByStatus[status] += count
	k.TotalValue = k.TotalValue.Add(sum)
	if status == statusApproved {
		k.ApprovedValue = k.ApprovedValue.Add(sum)
	}
}

func scanQuote(row pgx.Row, q *Quote, extra ...any) error {
	dest := []any{
		&q.ID, &q.CompanyID, &q.ClientID, &q.UserID, &q.DocumentNumber,
		&q.Reference, &q.Notes, &q.InternalNotes,
		&q.QuoteDate, &q.ValidityDate, &q.LeadStartDate, &q.LeadDurationDays,
		&q.TaxPercent, &q.FreightAmount, &q.DiscountMode, &q.DiscountValue,
		&q.SubtotalServices, &q.SubtotalMaterials, &q.Subtotal, &q.TaxAmount, &q.DiscountAmount, &q.Total,
		&q.Status, &q.PaymentTerms, &q.PaymentMethods,
		&q.CreatedAt, &q.UpdatedAt, &q.RemovedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// mapWriteError turns a document number collision into a Conflict.
func mapWriteError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == documentNumberUniqueKey {
		return apperr.Conflict(documentNumberTakenMsg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
