package sales

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/receipt"
)

// ErrInvalidSale rejects ledger rows without a receipt id.
var ErrInvalidSale = errors.New("sale requires a receipt id")

// Sale is one completed bill as recorded in the ledger.
type Sale struct {
	ReceiptID  string          `json:"receiptId"`
	OccurredAt time.Time       `json:"occurredAt"`
	ItemsCount int             `json:"itemsCount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"taxAmount"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// FromReceipt derives the ledger row for a receipt.
func FromReceipt(r receipt.Receipt) Sale {
	return Sale{
		ReceiptID:  r.ID,
		OccurredAt: r.CreatedAt,
		ItemsCount: r.ItemsCount(),
		Subtotal:   r.Subtotal,
		TaxAmount:  r.TaxAmount,
		GrandTotal: r.GrandTotal,
	}
}

// Ledger stores completed sales. Record is idempotent per receipt id.
type Ledger interface {
	Record(ctx context.Context, s Sale) error
	// Between returns sales with from <= OccurredAt < to, oldest first.
	Between(ctx context.Context, from, to time.Time) ([]Sale, error)
}
