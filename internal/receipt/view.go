package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

// ViewConfig carries the shop branding printed on every receipt.
type ViewConfig struct {
	CurrencySymbol string
	StoreName      string
	StoreTagline   string
}

// Line is a rendered receipt line.
type Line struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Total     string `json:"total"`
}

// Row is a labelled amount in the totals block.
type Row struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Negative bool   `json:"negative,omitempty"`
	Strong   bool   `json:"strong,omitempty"`
}

// Display is everything a printer or screen needs, derived from the receipt alone.
type Display struct {
	StoreName     string    `json:"storeName"`
	StoreTagline  string    `json:"storeTagline"`
	ReceiptID     string    `json:"receiptId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	IssuedAt      time.Time `json:"issuedAt"`
	Lines         []Line    `json:"lines"`
	Totals        []Row     `json:"totals"`
	Footer        []string  `json:"footer"`
}

var footer = []string{
	"Thank you for your business!",
	"This is a computer generated invoice.",
}

// Render builds the display for r. The taxable amount is re-derived from the
// snapshot with the calculator's clamp so the view never shows a negative base.
func (c ViewConfig) Render(r Receipt) Display {
	lines := make([]Line, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, Line{
			Code:      it.Code,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: c.money(it.UnitPrice),
			Total:     c.money(it.LineTotal()),
		})
	}

	totals := []Row{{Label: "Subtotal", Amount: c.money(r.Subtotal)}}
	if r.Discount.IsPositive() {
		totals = append(totals, c.negative("Discount", r.Discount))
	}
	if r.ExtraDiscount.IsPositive() {
		totals = append(totals, c.negative("Special discount", r.ExtraDiscount))
	}
	totals = append(totals,
		Row{Label: "Taxable amount", Amount: c.money(pricing.Taxable(r.Subtotal, r.Discount, r.ExtraDiscount))},
		Row{Label: "GST (" + r.TaxRate.String() + "%)", Amount: c.money(r.TaxAmount)},
		Row{Label: "Grand total", Amount: c.money(r.GrandTotal), Strong: true},
	)

	return Display{
		StoreName:     c.StoreName,
		StoreTagline:  c.StoreTagline,
		ReceiptID:     r.ID,
		InvoiceNumber: r.InvoiceNumber(),
		IssuedAt:      r.CreatedAt,
		Lines:         lines,
		Totals:        totals,
		Footer:        append([]string(nil), footer...),
	}
}

func (c ViewConfig) money(v decimal.Decimal) string {
	return c.CurrencySymbol + v.StringFixed(2)
}

func (c ViewConfig) negative(label string, v decimal.Decimal) Row {
	return Row{Label: label, Amount: "-" + c.money(v), Negative: true}
}
