package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/receipt"
	"github.com/noah-isme/toko-pos/internal/sales"
)

const dateLayout = "2006-01-02"

// ProductSearcher lists catalog products matching a query.
type ProductSearcher interface {
	Search(ctx context.Context, query string) ([]catalog.Product, error)
}

// Service builds sales and stock reports. Reports for closed days are cached
// in Redis when a client is configured.
type Service struct {
	Ledger       sales.Ledger
	Catalog      ProductSearcher
	R            *redis.Client
	TTL          time.Duration
	Location     *time.Location
	DefaultRange int
	Now          func() time.Time
}

// SaleRow is one bill in the daily report.
type SaleRow struct {
	ReceiptID     string          `json:"receiptId"`
	InvoiceNumber string          `json:"invoiceNo"`
	Time          time.Time       `json:"time"`
	ItemsCount    int             `json:"itemsCount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"gstAmount"`
	GrandTotal    decimal.Decimal `json:"total"`
}

// DailyReport summarises the bills of one day.
type DailyReport struct {
	Date       string          `json:"date"`
	Bills      int             `json:"bills"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"gstAmount"`
	GrandTotal decimal.Decimal `json:"total"`
	Rows       []SaleRow       `json:"rows"`
}

// DaySummary is one day of a sales range.
type DaySummary struct {
	Date       string          `json:"date"`
	Bills      int             `json:"bills"`
	GrandTotal decimal.Decimal `json:"total"`
}

// StockRow is one product in the stock report.
type StockRow struct {
	ProductID     int64           `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Stock         int             `json:"currentStock"`
	ReorderLevel  int             `json:"reorderLevel"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	MarginPerUnit decimal.Decimal `json:"marginPerUnit"`
	LowStock      bool            `json:"lowStock"`
}

// StockReport lists products with their stock position.
type StockReport struct {
	Listed   int        `json:"listed"`
	LowStock int        `json:"lowStock"`
	Rows     []StockRow `json:"rows"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s != nil && s.Location != nil {
		return s.Location
	}
	return time.Local
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// DayBounds returns the start of day and of the following day in the report location.
func (s *Service) DayBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(s.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location())
	return start, start.AddDate(0, 0, 1)
}

// DailySales reports every bill recorded on day.
func (s *Service) DailySales(ctx context.Context, day time.Time) (DailyReport, error) {
	if s == nil || s.Ledger == nil {
		return DailyReport{}, fmt.Errorf("analytics service not configured")
	}
	from, to := s.DayBounds(day)
	date := from.Format(dateLayout)
	closed := !s.now().Before(to)
	key := cacheKey("an", "daily", date)

	var report DailyReport
	if closed && s.load(ctx, key, &report) {
		return report, nil
	}
	rows, err := s.Ledger.Between(ctx, from, to)
	if err != nil {
		return DailyReport{}, err
	}
	report = DailyReport{Date: date, Rows: make([]SaleRow, 0, len(rows))}
	for _, sale := range rows {
		report.Bills++
		report.Subtotal = report.Subtotal.Add(sale.Subtotal)
		report.TaxAmount = report.TaxAmount.Add(sale.TaxAmount)
		report.GrandTotal = report.GrandTotal.Add(sale.GrandTotal)
		report.Rows = append(report.Rows, SaleRow{
			ReceiptID:     sale.ReceiptID,
			InvoiceNumber: receipt.Receipt{ID: sale.ReceiptID}.InvoiceNumber(),
			Time:          sale.OccurredAt.In(s.location()),
			ItemsCount:    sale.ItemsCount,
			Subtotal:      sale.Subtotal,
			TaxAmount:     sale.TaxAmount,
			GrandTotal:    sale.GrandTotal,
		})
	}
	if closed {
		s.store(ctx, key, report)
	}
	return report, nil
}

// SalesRange returns per-day totals for the days last days ending today.
func (s *Service) SalesRange(ctx context.Context, days int) ([]DaySummary, error) {
	if s == nil || s.Ledger == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 7
	}
	todayStart, end := s.DayBounds(s.now())
	start := todayStart.AddDate(0, 0, -(days - 1))
	rows, err := s.Ledger.Between(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]DaySummary, days)
	index := make(map[string]int, days)
	for i := range out {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		out[i] = DaySummary{Date: date}
		index[date] = i
	}
	for _, sale := range rows {
		i, ok := index[sale.OccurredAt.In(s.location()).Format(dateLayout)]
		if !ok {
			continue
		}
		out[i].Bills++
		out[i].GrandTotal = out[i].GrandTotal.Add(sale.GrandTotal)
	}
	return out, nil
}

// Stock reports products matching query, optionally only those at or below
// their reorder level.
func (s *Service) Stock(ctx context.Context, query string, lowOnly bool) (StockReport, error) {
	if s == nil || s.Catalog == nil {
		return StockReport{}, fmt.Errorf("analytics service not configured")
	}
	products, err := s.Catalog.Search(ctx, query)
	if err != nil {
		return StockReport{}, err
	}
	report := StockReport{Rows: make([]StockRow, 0, len(products))}
	for _, p := range products {
		low := p.LowStock()
		if lowOnly && !low {
			continue
		}
		if low {
			report.LowStock++
		}
		report.Rows = append(report.Rows, StockRow{
			ProductID:     p.ID,
			Code:          p.Code,
			Name:          p.Name,
			Stock:         p.Stock,
			ReorderLevel:  p.ReorderLevel,
			PurchasePrice: p.PurchasePrice,
			SellPrice:     p.SellPrice,
			MarginPerUnit: p.MarginPerUnit(),
			LowStock:      low,
		})
	}
	report.Listed = len(report.Rows)
	return report, nil
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
