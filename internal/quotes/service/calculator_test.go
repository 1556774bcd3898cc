package service

import (
	"testing"

	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(kind transport.ItemKind, qty, price string) CalcItem {
	return CalcItem{Kind: kind, Quantity: d(qty), UnitPrice: d(price)}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("expected %s %s, got %s", name, want, got)
	}
}

func TestCompute_FixedDiscountWithTaxAndFreight(t *testing.T) {
	items := []CalcItem{
		item(transport.ItemKindService, "2", "100"),
		item(transport.ItemKindMaterial, "1", "50"),
	}

	totals, err := Compute(items, d("10"), d("20"), DiscountFixedAmount, d("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertDecimal(t, "subtotal services", totals.SubtotalServices, "200")
	assertDecimal(t, "subtotal materials", totals.SubtotalMaterials, "50")
	assertDecimal(t, "subtotal", totals.Subtotal, "250")
	assertDecimal(t, "tax", totals.TaxAmount, "25")
	assertDecimal(t, "discount", totals.DiscountAmount, "30")
	assertDecimal(t, "total", totals.Total, "265")
	if len(totals.LineTotals) != 2 {
		t.Fatalf("expected 2 line totals, got %d", len(totals.LineTotals))
	}
	assertDecimal(t, "first line", totals.LineTotals[0], "200")
}

func TestCompute_PercentDiscountOnlyTouchesItsKind(t *testing.T) {
	items := []CalcItem{
		item(transport.ItemKindService, "1", "200"),
		item(transport.ItemKindMaterial, "1", "100"),
	}

	services, err := Compute(items, decimal.Zero, decimal.Zero, DiscountPercentOnServices, d("10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "services discount", services.DiscountAmount, "20")
	assertDecimal(t, "services total", services.Total, "280")

	materials, err := Compute(items, decimal.Zero, decimal.Zero, DiscountPercentOnMaterials, d("10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "materials discount", materials.DiscountAmount, "10")
	assertDecimal(t, "materials total", materials.Total, "290")
}

func TestCompute_TotalNeverNegative(t *testing.T) {
	items := []CalcItem{item(transport.ItemKindService, "1", "10")}

	totals, err := Compute(items, d("10"), d("5"), DiscountFixedAmount, d("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "total", totals.Total, "0")
	if totals.Total.IsNegative() {
		t.Fatal("total must not be negative")
	}
}

func TestCompute_RoundsOnlyTheFinalTotal(t *testing.T) {
	// 3 × 0.335 = 1.005; with 10% tax the exact total is 1.1055.
	items := []CalcItem{item(transport.ItemKindMaterial, "3", "0.335")}

	totals, err := Compute(items, d("10"), decimal.Zero, DiscountFixedAmount, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "subtotal", totals.Subtotal, "1.005")
	assertDecimal(t, "tax", totals.TaxAmount, "0.1005")
	assertDecimal(t, "total", totals.Total, "1.11")
}

func TestCompute_DecimalArithmeticHasNoDrift(t *testing.T) {
	items := make([]CalcItem, 10)
	for i := range items {
		items[i] = item(transport.ItemKindService, "1", "0.1")
	}

	totals, err := Compute(items, decimal.Zero, decimal.Zero, DiscountFixedAmount, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "total", totals.Total, "1")
}

func TestCompute_EmptyItems(t *testing.T) {
	totals, err := Compute(nil, d("10"), d("15"), DiscountPercentOnServices, d("50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "total", totals.Total, "15")
}

func TestCompute_RejectsInvalidInput(t *testing.T) {
	valid := []CalcItem{item(transport.ItemKindService, "1", "10")}

	cases := []struct {
		name     string
		items    []CalcItem
		tax      string
		freight  string
		mode     DiscountMode
		discount string
	}{
		{"zero quantity", []CalcItem{item(transport.ItemKindService, "0", "10")}, "0", "0", DiscountFixedAmount, "0"},
		{"negative quantity", []CalcItem{item(transport.ItemKindService, "-1", "10")}, "0", "0", DiscountFixedAmount, "0"},
		{"negative unit price", []CalcItem{item(transport.ItemKindMaterial, "1", "-0.01")}, "0", "0", DiscountFixedAmount, "0"},
		{"negative tax", valid, "-1", "0", DiscountFixedAmount, "0"},
		{"tax above 100", valid, "100.01", "0", DiscountFixedAmount, "0"},
		{"negative freight", valid, "0", "-5", DiscountFixedAmount, "0"},
		{"negative discount", valid, "0", "0", DiscountFixedAmount, "-1"},
		{"percent above 100", valid, "0", "0", DiscountPercentOnServices, "101"},
		{"unknown mode", valid, "0", "0", DiscountMode(0), "0"},
		{"unknown kind", []CalcItem{item("labor", "1", "1")}, "0", "0", DiscountFixedAmount, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.items, d(tc.tax), d(tc.freight), tc.mode, d(tc.discount))
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParseDiscountMode(t *testing.T) {
	if mode, err := ParseDiscountMode(""); err != nil || mode != DiscountFixedAmount {
		t.Fatalf("expected empty mode to default to fixed amount, got %v (%v)", mode, err)
	}
	if mode, _ := ParseDiscountMode(transport.DiscountPercentMaterials); mode.Wire() != transport.DiscountPercentMaterials {
		t.Fatalf("expected round trip of percent_materials, got %q", mode.Wire())
	}
	if _, err := ParseDiscountMode("bogus"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
