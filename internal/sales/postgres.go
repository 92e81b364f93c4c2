package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool used by PostgresLedger.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLedger records sales in the sales table.
type PostgresLedger struct {
	db DB
}

func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Record(ctx context.Context, s Sale) error {
	if s.ReceiptID == "" {
		return ErrInvalidSale
	}
	_, err := l.db.Exec(ctx, `INSERT INTO sales (receipt_id, occurred_at, items_count, subtotal, tax_amount, grand_total)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)
		ON CONFLICT (receipt_id) DO NOTHING`,
		s.ReceiptID, s.OccurredAt, s.ItemsCount, s.Subtotal.String(), s.TaxAmount.String(), s.GrandTotal.String())
	if err != nil {
		return fmt.Errorf("record sale %s: %w", s.ReceiptID, err)
	}
	return nil
}

func (l *PostgresLedger) Between(ctx context.Context, from, to time.Time) ([]Sale, error) {
	rows, err := l.db.Query(ctx, `SELECT receipt_id, occurred_at, items_count, subtotal::text, tax_amount::text, grand_total::text
		FROM sales
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at, receipt_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := make([]Sale, 0)
	for rows.Next() {
		var (
			s                   Sale
			subtotal, tax, gross string
		)
		if err := rows.Scan(&s.ReceiptID, &s.OccurredAt, &s.ItemsCount, &subtotal, &tax, &gross); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if s.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, fmt.Errorf("decode subtotal: %w", err)
		}
		if s.TaxAmount, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("decode tax amount: %w", err)
		}
		if s.GrandTotal, err = decimal.NewFromString(gross); err != nil {
			return nil, fmt.Errorf("decode grand total: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return out, nil
}
