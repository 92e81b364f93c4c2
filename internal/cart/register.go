package cart

import (
	"context"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Entry is one cart line: a product and how many of it.
type Entry struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// LookupFunc resolves a product by code, returning catalog.ErrNotFound when
// nothing matches.
type LookupFunc func(ctx context.Context, code string) (catalog.Product, error)

// Register holds the entries of one unfinished sale in first-add order.
// There is at most one entry per product id and no entry with a quantity
// below one. Register is not safe for concurrent use.
type Register struct {
	entries []Entry
}

// New returns an empty register.
func New() *Register {
	return &Register{}
}

// AddProduct increments the quantity of p's entry, appending it with
// quantity 1 when absent.
func (r *Register) AddProduct(p catalog.Product) {
	if i := r.index(p.ID); i >= 0 {
		r.entries[i].Quantity++
		return
	}
	r.entries = append(r.entries, Entry{Product: p, Quantity: 1})
}

// AddByCode looks code up and adds the match. On catalog.ErrNotFound or any
// lookup failure the register is left untouched and the error is returned.
func (r *Register) AddByCode(ctx context.Context, code string, lookup LookupFunc) (catalog.Product, error) {
	p, err := lookup(ctx, code)
	if err != nil {
		return catalog.Product{}, err
	}
	r.AddProduct(p)
	return p, nil
}

// SetQuantity replaces the quantity of the entry for productID. A quantity of
// zero or less removes the entry. It reports whether an entry was present;
// setting a quantity never adds a product.
func (r *Register) SetQuantity(productID int64, quantity int) bool {
	i := r.index(productID)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		return true
	}
	r.entries[i].Quantity = quantity
	return true
}

// Clear empties the register.
func (r *Register) Clear() {
	r.entries = nil
}

// Len returns the number of distinct products.
func (r *Register) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in order.
func (r *Register) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Items converts the entries to calculator input.
func (r *Register) Items() []pricing.Item {
	items := make([]pricing.Item, 0, len(r.entries))
	for _, e := range r.entries {
		items = append(items, pricing.Item{Qty: e.Quantity, UnitPrice: e.Product.SellPrice})
	}
	return items
}

func (r *Register) index(productID int64) int {
	for i, e := range r.entries {
		if e.Product.ID == productID {
			return i
		}
	}
	return -1
}
