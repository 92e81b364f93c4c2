package receipt_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/receipt"
)

var view = receipt.ViewConfig{CurrencySymbol: "₹", StoreName: "AMEnterprise", StoreTagline: "Import & retail of electric products"}

func labels(rows []receipt.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Label)
	}
	return out
}

func TestRenderWithDiscounts(t *testing.T) {
	rec := receipt.Receipt{
		ID: "01923f3a-7b1c-7d2e-8f00-00000012ab34",
		Items: []receipt.Item{
			{Code: "ELC-1001", Name: "LED Bulb 12W", UnitPrice: decimal.NewFromInt(80), Quantity: 2},
			{Code: "ELC-3003", Name: "USB Charger 2.4A", UnitPrice: decimal.NewFromInt(260), Quantity: 1},
		},
		Subtotal:      decimal.NewFromInt(420),
		Discount:      decimal.NewFromInt(20),
		ExtraDiscount: decimal.RequireFromString("5.5"),
		TaxRate:       decimal.NewFromInt(18),
		TaxAmount:     decimal.RequireFromString("71.01"),
		GrandTotal:    decimal.RequireFromString("465.51"),
	}
	d := view.Render(rec)

	require.Equal(t, "12ab34", d.InvoiceNumber)
	require.Equal(t, "AMEnterprise", d.StoreName)
	require.Equal(t, "₹160.00", d.Lines[0].Total)
	require.Equal(t, "₹260.00", d.Lines[1].UnitPrice)
	require.Equal(t, []string{"Subtotal", "Discount", "Special discount", "Taxable amount", "GST (18%)", "Grand total"}, labels(d.Totals))
	require.Equal(t, "-₹20.00", d.Totals[1].Amount)
	require.True(t, d.Totals[1].Negative)
	require.Equal(t, "-₹5.50", d.Totals[2].Amount)
	require.Equal(t, "₹394.50", d.Totals[3].Amount)
	require.Equal(t, "₹465.51", d.Totals[5].Amount)
	require.True(t, d.Totals[5].Strong)
	require.Len(t, d.Footer, 2)
}

func TestRenderOmitsZeroDiscounts(t *testing.T) {
	rec := receipt.Receipt{ID: "r1", Subtotal: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(5), TaxAmount: decimal.NewFromInt(5), GrandTotal: decimal.NewFromInt(105)}
	d := view.Render(rec)
	require.Equal(t, []string{"Subtotal", "Taxable amount", "GST (5%)", "Grand total"}, labels(d.Totals))
}

func TestRenderClampsTaxableAmount(t *testing.T) {
	rec := receipt.Receipt{ID: "r2", Subtotal: decimal.NewFromInt(100), Discount: decimal.NewFromInt(150), TaxRate: decimal.NewFromInt(18)}
	d := view.Render(rec)
	require.Equal(t, "₹0.00", d.Totals[2].Amount)
	require.Equal(t, "₹0.00", d.Totals[len(d.Totals)-1].Amount)
}

func TestRenderRoundsToTwoPlaces(t *testing.T) {
	rec := receipt.Receipt{
		ID:         "r3",
		Items:      []receipt.Item{{Code: "X", Name: "x", UnitPrice: decimal.RequireFromString("10.01"), Quantity: 1}},
		Subtotal:   decimal.RequireFromString("10.01"),
		TaxRate:    decimal.NewFromInt(18),
		TaxAmount:  decimal.RequireFromString("1.8018"),
		GrandTotal: decimal.RequireFromString("11.8118"),
	}
	d := view.Render(rec)
	require.Equal(t, "₹1.80", d.Totals[2].Amount)
	require.Equal(t, "₹11.81", d.Totals[3].Amount)
}
