package receipt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/receipt"
)

func sample(id string) receipt.Receipt {
	return receipt.Receipt{
		ID:         id,
		Items:      []receipt.Item{{Code: "ELC-2002", Name: "Extension Board 4 Socket", UnitPrice: decimal.NewFromInt(320), Quantity: 1}},
		Subtotal:   decimal.NewFromInt(320),
		TaxRate:    decimal.NewFromInt(18),
		TaxAmount:  decimal.RequireFromString("57.6"),
		GrandTotal: decimal.RequireFromString("377.6"),
		CreatedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func exerciseSlot(t *testing.T, slot receipt.Slot) {
	t.Helper()
	ctx := context.Background()

	_, err := slot.Load(ctx)
	require.ErrorIs(t, err, receipt.ErrNoReceipt)

	require.NoError(t, slot.Save(ctx, sample("first")))
	require.NoError(t, slot.Save(ctx, sample("second")))

	got, err := slot.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", got.ID)
	require.Len(t, got.Items, 1)
	require.True(t, got.GrandTotal.Equal(decimal.RequireFromString("377.6")))
	require.True(t, got.CreatedAt.Equal(sample("x").CreatedAt))
}

func TestMemorySlot(t *testing.T) {
	exerciseSlot(t, receipt.NewMemorySlot())
}

func TestMemorySlotIsolatesCallers(t *testing.T) {
	slot := receipt.NewMemorySlot()
	r := sample("a")
	require.NoError(t, slot.Save(context.Background(), r))
	r.Items[0].Name = "mutated"

	got, err := slot.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Extension Board 4 Socket", got.Items[0].Name)
}

func TestRedisSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	slot := receipt.NewRedisSlot(client, "", zerolog.Nop())
	exerciseSlot(t, slot)
	require.Equal(t, []string{receipt.DefaultRedisKey}, mr.Keys())
}

func TestRedisSlotCorruptPayloadIsAbsent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set(receipt.DefaultRedisKey, "{not json"))

	_, err := receipt.NewRedisSlot(client, "", zerolog.Nop()).Load(context.Background())
	require.ErrorIs(t, err, receipt.ErrNoReceipt)
}

type fakeRow struct {
	payload string
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.payload
	return nil
}

type fakeReceiptDB struct {
	payload *string
	execErr error
}

func (f *fakeReceiptDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	p := args[1].(string)
	f.payload = &p
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeReceiptDB) QueryRow(context.Context, string, ...any) pgx.Row {
	if f.payload == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: *f.payload}
}

func TestPostgresSlot(t *testing.T) {
	exerciseSlot(t, receipt.NewPostgresSlot(&fakeReceiptDB{}, zerolog.Nop()))
}

func TestPostgresSlotSaveError(t *testing.T) {
	boom := errors.New("connection reset")
	err := receipt.NewPostgresSlot(&fakeReceiptDB{execErr: boom}, zerolog.Nop()).Save(context.Background(), sample("a"))
	require.ErrorIs(t, err, boom)
}

func TestPostgresSlotCorruptPayloadIsAbsent(t *testing.T) {
	bad := `{"id": 12}`
	_, err := receipt.NewPostgresSlot(&fakeReceiptDB{payload: &bad}, zerolog.Nop()).Load(context.Background())
	require.ErrorIs(t, err, receipt.ErrNoReceipt)
}
