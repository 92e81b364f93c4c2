package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "expected %s, got %s", want, got.String())
}

func TestComputeLedAndCharger(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: d("80")},
		{Qty: 1, UnitPrice: d("260")},
	}
	sum := Compute(items, d("20"), decimal.Zero, d("18"))
	requireAmount(t, "420", sum.Subtotal)
	requireAmount(t, "400", sum.TaxableAmount)
	requireAmount(t, "72", sum.TaxAmount)
	requireAmount(t, "472", sum.GrandTotal)
	requireAmount(t, "18", sum.TaxRate)
}

func TestComputeDiscountExceedsSubtotal(t *testing.T) {
	sum := Compute([]Item{{Qty: 1, UnitPrice: d("100")}}, d("150"), decimal.Zero, d("18"))
	requireAmount(t, "100", sum.Subtotal)
	requireAmount(t, "0", sum.TaxableAmount)
	requireAmount(t, "0", sum.TaxAmount)
	requireAmount(t, "0", sum.GrandTotal)
}

func TestComputeExtraDiscountAloneClamps(t *testing.T) {
	sum := Compute([]Item{{Qty: 3, UnitPrice: d("10")}}, decimal.Zero, d("45.5"), d("5"))
	requireAmount(t, "0", sum.TaxableAmount)
	requireAmount(t, "0", sum.GrandTotal)
	requireAmount(t, "45.5", sum.ExtraDiscount)
}

func TestComputeEmpty(t *testing.T) {
	sum := Compute(nil, d("10"), d("5"), d("18"))
	requireAmount(t, "0", sum.Subtotal)
	requireAmount(t, "0", sum.TaxableAmount)
	requireAmount(t, "0", sum.TaxAmount)
	requireAmount(t, "0", sum.GrandTotal)
}

func TestComputeDoesNotRoundIntermediates(t *testing.T) {
	sum := Compute([]Item{{Qty: 1, UnitPrice: d("10.01")}}, decimal.Zero, decimal.Zero, d("18"))
	requireAmount(t, "1.8018", sum.TaxAmount)
	requireAmount(t, "11.8118", sum.GrandTotal)
}

func TestComputeSkipsNonPositiveQuantities(t *testing.T) {
	sum := Compute([]Item{{Qty: 0, UnitPrice: d("99")}, {Qty: -2, UnitPrice: d("5")}, {Qty: 1, UnitPrice: d("7")}}, decimal.Zero, decimal.Zero, decimal.Zero)
	requireAmount(t, "7", sum.Subtotal)
}

func TestComputeInvariants(t *testing.T) {
	carts := [][]Item{
		nil,
		{{Qty: 1, UnitPrice: d("0")}},
		{{Qty: 4, UnitPrice: d("12.75")}, {Qty: 1, UnitPrice: d("320")}},
		{{Qty: 10, UnitPrice: d("0.33")}},
	}
	amounts := []string{"0", "0.5", "20", "100", "5000"}
	rates := []string{"0", "5", "12.5", "18", "28"}

	for _, items := range carts {
		for _, disc := range amounts {
			for _, extra := range amounts {
				for _, rate := range rates {
					sum := Compute(items, d(disc), d(extra), d(rate))
					require.False(t, sum.TaxableAmount.IsNegative())
					require.False(t, sum.GrandTotal.IsNegative())
					want := sum.TaxableAmount.Add(sum.TaxableAmount.Mul(d(rate)).Div(d("100")))
					require.True(t, want.Equal(sum.GrandTotal), "grand total %s != %s", sum.GrandTotal, want)

					again := Compute(items, d(disc), d(extra), d(rate))
					require.True(t, again.GrandTotal.Equal(sum.GrandTotal))
				}
			}
		}
	}
}

func TestTaxable(t *testing.T) {
	requireAmount(t, "5", Taxable(d("30"), d("20"), d("5")))
	requireAmount(t, "0", Taxable(d("30"), d("20"), d("15")))
}
