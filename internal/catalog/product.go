package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no product matched the lookup.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateCode is returned when another product already uses the code.
	ErrDuplicateCode = errors.New("product code already exists")
)

// Product is a catalog entry. Billing only reads ID, Code, Name and SellPrice.
type Product struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	LandedCost    decimal.Decimal `json:"landedCost"`
	GSTRate       decimal.Decimal `json:"gstRate"`
	Stock         int             `json:"stock"`
	ReorderLevel  int             `json:"reorderLevel"`
}

// MarginPerUnit is the sell price minus landed cost, or minus the purchase
// price when no landed cost has been recorded.
func (p Product) MarginPerUnit() decimal.Decimal {
	cost := p.LandedCost
	if cost.IsZero() {
		cost = p.PurchasePrice
	}
	return p.SellPrice.Sub(cost)
}

// LowStock reports whether the product is at or below its reorder level.
func (p Product) LowStock() bool {
	return p.Stock <= p.ReorderLevel
}

// Matches reports whether query is a case-insensitive substring of the code or name.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Code), q) || strings.Contains(strings.ToLower(p.Name), q)
}

// Store is the catalog persistence contract.
type Store interface {
	ByCode(ctx context.Context, code string) (Product, error)
	ByID(ctx context.Context, id int64) (Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
}

// DemoProducts returns the products the register ships with in memory mode.
func DemoProducts() []Product {
	return []Product{
		{
			ID: 1, Code: "ELC-1001", Name: "LED Bulb 12W",
			SellPrice: decimal.NewFromInt(80), PurchasePrice: decimal.NewFromInt(45),
			GSTRate: decimal.NewFromInt(18), Stock: 120, ReorderLevel: 40,
		},
		{
			ID: 2, Code: "ELC-2002", Name: "Extension Board 4 Socket",
			SellPrice: decimal.NewFromInt(320), PurchasePrice: decimal.NewFromInt(210),
			GSTRate: decimal.NewFromInt(18), Stock: 12, ReorderLevel: 25,
		},
		{
			ID: 3, Code: "ELC-3003", Name: "USB Charger 2.4A",
			SellPrice: decimal.NewFromInt(260), PurchasePrice: decimal.NewFromInt(160),
			GSTRate: decimal.NewFromInt(18), Stock: 6, ReorderLevel: 20,
		},
	}
}
