package register

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/cart"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("register session not found")
	// ErrInvalidAdjustment rejects negative discounts.
	ErrInvalidAdjustment = errors.New("discounts must not be negative")
)

// Session is one register's working state: the open cart and the bill inputs.
type Session struct {
	ID            string
	Cart          *cart.Register
	Discount      decimal.Decimal
	ExtraDiscount decimal.Decimal
	TaxRate       decimal.Decimal
	OpenedAt      time.Time
	LastActive    time.Time
}

func newSession(id string, taxRate decimal.Decimal, now time.Time) *Session {
	return &Session{
		ID:         id,
		Cart:       cart.New(),
		TaxRate:    taxRate,
		OpenedAt:   now,
		LastActive: now,
	}
}

// Bill computes the current bill. It never mutates the session.
func (s *Session) Bill() pricing.Summary {
	return pricing.Compute(s.Cart.Items(), s.Discount, s.ExtraDiscount, s.TaxRate)
}

// SetAdjustments replaces both flat discounts.
func (s *Session) SetAdjustments(discount, extraDiscount decimal.Decimal) error {
	if discount.IsNegative() || extraDiscount.IsNegative() {
		return ErrInvalidAdjustment
	}
	s.Discount = discount
	s.ExtraDiscount = extraDiscount
	return nil
}

// Reset prepares the session for the next sale.
func (s *Session) Reset() {
	s.Cart.Clear()
	s.Discount = decimal.Zero
	s.ExtraDiscount = decimal.Zero
}

// State is the read model of a session.
type State struct {
	ID            string          `json:"id"`
	Entries       []cart.Entry    `json:"entries"`
	Discount      decimal.Decimal `json:"discount"`
	ExtraDiscount decimal.Decimal `json:"extraDiscount"`
	Bill          pricing.Summary `json:"bill"`
	OpenedAt      time.Time       `json:"openedAt"`
}

// State snapshots the session for display.
func (s *Session) State() State {
	return State{
		ID:            s.ID,
		Entries:       s.Cart.Entries(),
		Discount:      s.Discount,
		ExtraDiscount: s.ExtraDiscount,
		Bill:          s.Bill(),
		OpenedAt:      s.OpenedAt,
	}
}
