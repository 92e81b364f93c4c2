package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/cart"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no entries.
	ErrEmptyCart = errors.New("nothing to check out")
	// ErrNoReceipt is returned by a Slot holding no readable receipt.
	ErrNoReceipt = errors.New("no recent receipt")
)

// Item is a line copied by value from the cart at checkout.
type Item struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Receipt is the immutable record of a completed sale.
type Receipt struct {
	ID            string          `json:"id"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	ExtraDiscount decimal.Decimal `json:"extraDiscount"`
	TaxableAmount decimal.Decimal `json:"taxableAmount"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// InvoiceNumber is the short number printed on the receipt.
func (r Receipt) InvoiceNumber() string {
	if len(r.ID) <= 6 {
		return r.ID
	}
	return r.ID[len(r.ID)-6:]
}

// ItemsCount sums the quantities of all lines.
func (r Receipt) ItemsCount() int {
	n := 0
	for _, it := range r.Items {
		n += it.Quantity
	}
	return n
}

func (r Receipt) clone() Receipt {
	r.Items = append([]Item(nil), r.Items...)
	return r
}

// Slot holds the single most recent receipt.
type Slot interface {
	Save(ctx context.Context, r Receipt) error
	Load(ctx context.Context) (Receipt, error)
}

// Serializer freezes bills into receipts.
type Serializer struct {
	newID func() (uuid.UUID, error)
	now   func() time.Time
}

// NewSerializer returns a Serializer issuing UUIDv7 identifiers.
func NewSerializer() *Serializer {
	return &Serializer{newID: uuid.NewV7, now: time.Now}
}

// WithClock overrides the timestamp source.
func (s *Serializer) WithClock(now func() time.Time) *Serializer {
	s.now = now
	return s
}

// Checkout snapshots entries and the bill computed for them. It fails with
// ErrEmptyCart when there is nothing to sell.
func (s *Serializer) Checkout(entries []cart.Entry, bill pricing.Summary) (Receipt, error) {
	if len(entries) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	id, err := s.newID()
	if err != nil {
		return Receipt{}, fmt.Errorf("generate receipt id: %w", err)
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{
			Code:      e.Product.Code,
			Name:      e.Product.Name,
			UnitPrice: e.Product.SellPrice,
			Quantity:  e.Quantity,
		})
	}
	return Receipt{
		ID:            id.String(),
		Items:         items,
		Subtotal:      bill.Subtotal,
		Discount:      bill.Discount,
		ExtraDiscount: bill.ExtraDiscount,
		TaxableAmount: bill.TaxableAmount,
		TaxRate:       bill.TaxRate,
		TaxAmount:     bill.TaxAmount,
		GrandTotal:    bill.GrandTotal,
		CreatedAt:     s.now().UTC(),
	}, nil
}
