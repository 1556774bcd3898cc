package repository

import (
	"context"
	"fmt"

	"orcamentos_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

// Document numbers come from one counter row per company. The upsert takes a
// row lock that is held until the surrounding transaction ends, so allocations
// for the same company serialize while other companies proceed. A rolled back
// create also rolls back its increment and leaves no gap.

const nextNumberQuery = `
	INSERT INTO quote_number_counters (company_id, last_number)
	VALUES ($1, 1)
	ON CONFLICT (company_id) DO UPDATE SET last_number = quote_number_counters.last_number + 1
	RETURNING last_number`

const reserveNumberQuery = `
	INSERT INTO quote_number_counters (company_id, last_number)
	VALUES ($1, $2)
	ON CONFLICT (company_id) DO UPDATE SET last_number = GREATEST(quote_number_counters.last_number, EXCLUDED.last_number)`

const documentNumberExistsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM quotes WHERE company_id = $1 AND document_number = $2
	)`

// nextNumber allocates the next document number for companyID inside tx.
func nextNumber(ctx context.Context, tx pgx.Tx, companyID int64) (int64, error) {
	var n int64
	if err := tx.QueryRow(ctx, nextNumberQuery, companyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to allocate document number: %w", err)
	}
	return n, nil
}

// reserveNumber claims an explicit document number inside tx. Removed quotes
// keep their numbers, so they count as taken.
func reserveNumber(ctx context.Context, tx pgx.Tx, companyID, number int64) error {
	if number <= 0 {
		return apperr.Validation("document number must be positive")
	}
	if _, err := tx.Exec(ctx, reserveNumberQuery, companyID, number); err != nil {
		return fmt.Errorf("failed to lock document counter: %w", err)
	}

	var taken bool
	if err := tx.QueryRow(ctx, documentNumberExistsQuery, companyID, number).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check document number: %w", err)
	}
	if taken {
		return apperr.Conflict(documentNumberTakenMsg)
	}
	return nil
}
