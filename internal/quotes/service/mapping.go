package service

import (
	"time"

	"orcamentos_backend/internal/quotes/repository"
	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/apperr"
	"orcamentos_backend/platform/sanitize"
)

// buildAggregate turns a request into a header and its items with all
// derived figures recomputed. Services come first, then materials, each
// keeping the order the caller sent.
func (s *Service) buildAggregate(companyID, userID int64, req transport.QuoteRequest) (*repository.Quote, []repository.QuoteItem, error) {
	mode, err := ParseDiscountMode(req.DiscountMode)
	if err != nil {
		return nil, nil, err
	}

	calcItems := make([]CalcItem, 0, len(req.Services)+len(req.Materials))
	for _, it := range req.Services {
		calcItems = append(calcItems, CalcItem{Kind: transport.ItemKindService, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	for _, it := range req.Materials {
		calcItems = append(calcItems, CalcItem{Kind: transport.ItemKindMaterial, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	totals, err := Compute(calcItems, req.TaxPercent, req.FreightAmount, mode, req.DiscountValue)
	if err != nil {
		return nil, nil, err
	}

	status := req.Status
	if status == "" {
		status = transport.QuoteStatusDraft
	}

	quoteDate := s.now().UTC().Truncate(24 * time.Hour)
	if req.QuoteDate != nil {
		quoteDate = req.QuoteDate.UTC()
	}

	quote := &repository.Quote{
		CompanyID:         companyID,
		ClientID:          req.ClientID,
		UserID:            userID,
		Reference:         sanitize.Line(req.Reference),
		Notes:             sanitize.Text(req.Notes),
		InternalNotes:     sanitize.Text(req.InternalNotes),
		QuoteDate:         quoteDate,
		ValidityDate:      req.ValidityDate,
		LeadStartDate:     req.LeadStartDate,
		LeadDurationDays:  req.LeadDurationDays,
		TaxPercent:        req.TaxPercent,
		FreightAmount:     req.FreightAmount,
		DiscountMode:      string(mode.Wire()),
		DiscountValue:     req.DiscountValue,
		SubtotalServices:  totals.SubtotalServices,
		SubtotalMaterials: totals.SubtotalMaterials,
		Subtotal:          totals.Subtotal,
		TaxAmount:         totals.TaxAmount,
		DiscountAmount:    totals.DiscountAmount,
		Total:             totals.Total,
		Status:            string(status),
		PaymentTerms:      sanitize.Text(req.PaymentTerms),
		PaymentMethods:    sanitize.Text(req.PaymentMethods),
	}

	items := make([]repository.QuoteItem, 0, len(calcItems))
	appendItems := func(kind transport.ItemKind, field string, reqs []transport.QuoteItemRequest) error {
		for i, it := range reqs {
			description := sanitize.Line(it.Description)
			if description == "" {
				return apperr.Validationf("%s[%d].description must not be empty", field, i)
			}
			items = append(items, repository.QuoteItem{
				Kind:        string(kind),
				Description: description,
				Detail:      sanitize.Text(it.Detail),
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				LineTotal:   totals.LineTotals[len(items)],
				SortOrder:   i,
			})
		}
		return nil
	}
	if err := appendItems(transport.ItemKindService, "servicos", req.Services); err != nil {
		return nil, nil, err
	}
	if err := appendItems(transport.ItemKindMaterial, "materiais", req.Materials); err != nil {
		return nil, nil, err
	}

	return quote, items, nil
}

func toQuoteResponse(q *repository.Quote, items []repository.QuoteItem) transport.QuoteResponse {
	resp := transport.QuoteResponse{
		ID:               q.ID,
		DocumentNumber:   q.DocumentNumber,
		CompanyID:        q.CompanyID,
		ClientID:         q.ClientID,
		UserID:           q.UserID,
		Reference:        q.Reference,
		Notes:            q.Notes,
		InternalNotes:    q.InternalNotes,
		QuoteDate:        q.QuoteDate,
		ValidityDate:     q.ValidityDate,
		LeadStartDate:    q.LeadStartDate,
		LeadDurationDays: q.LeadDurationDays,
		TaxPercent:       q.TaxPercent,
		FreightAmount:    q.FreightAmount,
		DiscountMode:     transport.DiscountMode(q.DiscountMode),
		DiscountValue:    q.DiscountValue,
		Totals: transport.QuoteTotals{
			SubtotalServices:  q.SubtotalServices,
			SubtotalMaterials: q.SubtotalMaterials,
			Subtotal:          q.Subtotal,
			TaxAmount:         q.TaxAmount,
			DiscountAmount:    q.DiscountAmount,
			Total:             q.Total,
		},
		Status:         transport.QuoteStatus(q.Status),
		PaymentTerms:   q.PaymentTerms,
		PaymentMethods: q.PaymentMethods,
		Services:       make([]transport.QuoteItemResponse, 0),
		Materials:      make([]transport.QuoteItemResponse, 0),
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}

	for _, it := range items {
		item := transport.QuoteItemResponse{
			ID:          it.ID,
			Kind:        transport.ItemKind(it.Kind),
			Description: it.Description,
			Detail:      it.Detail,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		}
		if item.Kind == transport.ItemKindMaterial {
			resp.Materials = append(resp.Materials, item)
		} else {
			resp.Services = append(resp.Services, item)
		}
	}
	return resp
}

func toSummaryResponse(s repository.QuoteSummary) transport.QuoteSummaryResponse {
	return transport.QuoteSummaryResponse{
		ID:             s.ID,
		DocumentNumber: s.DocumentNumber,
		CompanyID:      s.CompanyID,
		CompanyName:    s.CompanyName,
		ClientID:       s.ClientID,
		ClientName:     s.ClientName,
		Reference:      s.Reference,
		QuoteDate:      s.QuoteDate,
		ValidityDate:   s.ValidityDate,
		Status:         transport.QuoteStatus(s.Status),
		Total:          s.Total,
	}
}

func toActivityResponse(a repository.Activity) transport.QuoteActivityResponse {
	resp := transport.QuoteActivityResponse{
		EventType:      a.EventType,
		DocumentNumber: a.DocumentNumber,
		Status:         a.Status,
		UserID:         a.UserID,
		RequestID:      a.RequestID,
		OccurredAt:     a.OccurredAt,
	}
	if a.Total.Valid {
		total := a.Total.Decimal
		resp.Total = &total
	}
	return resp
}
