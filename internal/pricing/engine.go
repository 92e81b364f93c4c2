package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in decimal currency units.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Item describes a line item used for bill calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed bill components. Values are never rounded here;
// presentation layers round the final amounts.
type Summary struct {
	Subtotal      Money `json:"subtotal"`
	Discount      Money `json:"discount"`
	ExtraDiscount Money `json:"extraDiscount"`
	TaxRate       Money `json:"taxRate"`
	TaxableAmount Money `json:"taxableAmount"`
	TaxAmount     Money `json:"taxAmount"`
	GrandTotal    Money `json:"grandTotal"`
}

// Compute calculates the bill for the provided items. Discounts are flat
// amounts and taxRate is a percentage. Negative inputs are treated as zero.
func Compute(items []Item, discount, extraDiscount, taxRate Money) Summary {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	discount = nonNegative(discount)
	extraDiscount = nonNegative(extraDiscount)
	taxRate = nonNegative(taxRate)

	taxable := Taxable(subtotal, discount, extraDiscount)
	tax := taxable.Mul(taxRate).Div(hundred)
	return Summary{
		Subtotal:      subtotal,
		Discount:      discount,
		ExtraDiscount: extraDiscount,
		TaxRate:       taxRate,
		TaxableAmount: taxable,
		TaxAmount:     tax,
		GrandTotal:    taxable.Add(tax),
	}
}

// Taxable returns subtotal minus both discounts, clamped at zero.
func Taxable(subtotal, discount, extraDiscount Money) Money {
	taxable := subtotal.Sub(discount).Sub(extraDiscount)
	if taxable.IsNegative() {
		return decimal.Zero
	}
	return taxable
}

func nonNegative(v Money) Money {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
