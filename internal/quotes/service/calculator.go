package service

import (
	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

// DiscountMode is the closed set of discount configurations a quote can use
type DiscountMode uint8

const (
	DiscountFixedAmount DiscountMode = iota + 1
	DiscountPercentOnServices
	DiscountPercentOnMaterials
)

var (
	hundred    = decimal.NewFromInt(100)
	totalScale = int32(2)
)

// ParseDiscountMode maps the wire value to a DiscountMode. An empty value
// means a fixed amount.
func ParseDiscountMode(mode transport.DiscountMode) (DiscountMode, error) {
	switch mode {
	case "", transport.DiscountFixedAmount:
		return DiscountFixedAmount, nil
	case transport.DiscountPercentServices:
		return DiscountPercentOnServices, nil
	case transport.DiscountPercentMaterials:
		return DiscountPercentOnMaterials, nil
	default:
		return 0, apperr.Validationf("unknown discount mode %q", mode)
	}
}

// Wire returns the value stored and sent over the API.
func (m DiscountMode) Wire() transport.DiscountMode {
	switch m {
	case DiscountFixedAmount:
		return transport.DiscountFixedAmount
	case DiscountPercentOnServices:
		return transport.DiscountPercentServices
	case DiscountPercentOnMaterials:
		return transport.DiscountPercentMaterials
	default:
		return ""
	}
}

func (m DiscountMode) isPercent() bool {
	return m == DiscountPercentOnServices || m == DiscountPercentOnMaterials
}

// CalcItem is the calculator's view of a line item
type CalcItem struct {
	Kind      transport.ItemKind
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Totals holds the derived figures of a quote. Only Total is rounded.
type Totals struct {
	LineTotals        []decimal.Decimal
	SubtotalServices  decimal.Decimal
	SubtotalMaterials decimal.Decimal
	Subtotal          decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
}

// LineTotal is quantity × unit price at full precision.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// Compute derives the financial totals of a quote. It is pure: the same
// inputs always produce the same Totals.
func Compute(items []CalcItem, taxPercent, freight decimal.Decimal, mode DiscountMode, discountValue decimal.Decimal) (Totals, error) {
	if err := validateFinancials(taxPercent, freight, mode, discountValue); err != nil {
		return Totals{}, err
	}

	t := Totals{LineTotals: make([]decimal.Decimal, len(items))}
	for i, it := range items {
		if !it.Quantity.IsPositive() {
			return Totals{}, apperr.Validationf("item %d: quantity must be greater than zero", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return Totals{}, apperr.Validationf("item %d: unit price must not be negative", i+1)
		}

		line := LineTotal(it.Quantity, it.UnitPrice)
		t.LineTotals[i] = line
		switch it.Kind {
		case transport.ItemKindService:
			t.SubtotalServices = t.SubtotalServices.Add(line)
		case transport.ItemKindMaterial:
			t.SubtotalMaterials = t.SubtotalMaterials.Add(line)
		default:
			return Totals{}, apperr.Validationf("item %d: unknown kind %q", i+1, it.Kind)
		}
	}

	t.Subtotal = t.SubtotalServices.Add(t.SubtotalMaterials)
	t.TaxAmount = t.Subtotal.Mul(taxPercent).Div(hundred)

	switch mode {
	case DiscountFixedAmount:
		t.DiscountAmount = discountValue
	case DiscountPercentOnServices:
		t.DiscountAmount = t.SubtotalServices.Mul(discountValue).Div(hundred)
	case DiscountPercentOnMaterials:
		t.DiscountAmount = t.SubtotalMaterials.Mul(discountValue).Div(hundred)
	}

	total := t.Subtotal.Add(t.TaxAmount).Add(freight).Sub(t.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	t.Total = total.Round(totalScale)
	return t, nil
}

func validateFinancials(taxPercent, freight decimal.Decimal, mode DiscountMode, discountValue decimal.Decimal) error {
	switch mode {
	case DiscountFixedAmount, DiscountPercentOnServices, DiscountPercentOnMaterials:
	default:
		return apperr.Validationf("unknown discount mode %d", mode)
	}
	if taxPercent.IsNegative() || taxPercent.GreaterThan(hundred) {
		return apperr.Validation("tax percent must be between 0 and 100")
	}
	if freight.IsNegative() {
		return apperr.Validation("freight amount must not be negative")
	}
	if discountValue.IsNegative() {
		return apperr.Validation("discount value must not be negative")
	}
	if mode.isPercent() && discountValue.GreaterThan(hundred) {
		return apperr.Validation("percent discount must not exceed 100")
	}
	return nil
}
