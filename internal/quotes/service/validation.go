package service

import (
	"context"
	"fmt"

	"orcamentos_backend/platform/apperr"

	"golang.org/x/sync/errgroup"
)

// References resolves the company and client a quote points at.
// Implemented by repository.ReferenceReader and repository.Memory.
type References interface {
	CompanyActive(ctx context.Context, companyID int64) (bool, error)
	ClientActive(ctx context.Context, companyID, clientID int64) (bool, error)
}

// validateReferences checks both references concurrently. A company failure
// is reported before a client failure.
func (s *Service) validateReferences(ctx context.Context, companyID int64, clientID *int64) error {
	var companyOK, clientOK bool
	clientOK = clientID == nil

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.refs.CompanyActive(gctx, companyID)
		companyOK = ok
		return err
	})
	if clientID != nil {
		g.Go(func() error {
			ok, err := s.refs.ClientActive(gctx, companyID, *clientID)
			clientOK = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("validate references: %w", err)
	}

	if !companyOK {
		return apperr.Validationf("company %d not found or inactive", companyID)
	}
	if !clientOK {
		return apperr.Validationf("client %d not found or inactive", *clientID)
	}
	return nil
}
