package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const companyActiveQuery = `
	SELECT EXISTS (
		SELECT 1 FROM companies
		WHERE id = $1 AND is_active AND removed_at IS NULL
	)`

const clientActiveQuery = `
	SELECT EXISTS (
		SELECT 1 FROM clients
		WHERE id = $1 AND company_id = $2 AND is_active AND removed_at IS NULL
	)`

// ReferenceReader checks the companies and clients owned by the entity
// CRUD service.
type ReferenceReader struct {
	pool *pgxpool.Pool
}

// NewReferenceReader creates a reader on the shared pool
func NewReferenceReader(pool *pgxpool.Pool) *ReferenceReader {
	return &ReferenceReader{pool: pool}
}

// CompanyActive reports whether the company exists, is active and not removed.
func (r *ReferenceReader) CompanyActive(ctx context.Context, companyID int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, companyActiveQuery, companyID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check company: %w", err)
	}
	return ok, nil
}

// ClientActive reports whether the client belongs to the company, is active
// and not removed.
func (r *ReferenceReader) ClientActive(ctx context.Context, companyID, clientID int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, clientActiveQuery, clientID, companyID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check client: %w", err)
	}
	return ok, nil
}
