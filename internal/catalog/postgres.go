package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = `id, code, name, sell_price::text, purchase_price::text, landed_cost::text, gst_rate::text, stock, reorder_level`

const uniqueViolation = "23505"

// PostgresStore persists products in the products table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore constructs a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ByCode(ctx context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE lower(code) = lower($1)`, code)
	return scanProduct(row)
}

func (s *PostgresStore) ByID(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *PostgresStore) Search(ctx context.Context, query string) ([]Product, error) {
	q := strings.TrimSpace(query)
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE $1 = ''
		   OR strpos(lower(code), lower($1)) > 0
		   OR strpos(lower(name), lower($1)) > 0
		ORDER BY id`, q)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Product) (Product, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO products
		(code, name, sell_price, purchase_price, landed_cost, gst_rate, stock, reorder_level)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7, $8)
		RETURNING `+productColumns,
		p.Code, p.Name, p.SellPrice.String(), p.PurchasePrice.String(), p.LandedCost.String(), p.GSTRate.String(), p.Stock, p.ReorderLevel)
	created, err := scanProduct(row)
	return created, mapWriteError(err)
}

func (s *PostgresStore) Update(ctx context.Context, p Product) (Product, error) {
	row := s.db.QueryRow(ctx, `UPDATE products SET
		code = $2, name = $3, sell_price = $4::numeric, purchase_price = $5::numeric,
		landed_cost = $6::numeric, gst_rate = $7::numeric, stock = $8, reorder_level = $9,
		updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Code, p.Name, p.SellPrice.String(), p.PurchasePrice.String(), p.LandedCost.String(), p.GSTRate.String(), p.Stock, p.ReorderLevel)
	updated, err := scanProduct(row)
	return updated, mapWriteError(err)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p                               Product
		sell, purchase, landed, gstRate string
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &sell, &purchase, &landed, &gstRate, &p.Stock, &p.ReorderLevel); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{{&p.SellPrice, sell}, {&p.PurchasePrice, purchase}, {&p.LandedCost, landed}, {&p.GSTRate, gstRate}} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return Product{}, fmt.Errorf("decode product %d amount: %w", p.ID, err)
		}
	}
	return p, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateCode
	}
	return err
}
