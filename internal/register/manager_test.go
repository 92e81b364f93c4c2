package register

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/catalog"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(c *clock) *Manager {
	return NewManager(ManagerConfig{
		TaxRate: decimal.NewFromInt(18),
		IdleTTL: time.Hour,
		Now:     c.Now,
		Logger:  zerolog.Nop(),
	})
}

func TestSessionBillAndAdjustments(t *testing.T) {
	s := newSession("s1", decimal.NewFromInt(18), time.Now())
	products := catalog.DemoProducts()
	s.Cart.AddProduct(products[0])
	s.Cart.AddProduct(products[0])
	s.Cart.AddProduct(products[2])
	require.NoError(t, s.SetAdjustments(decimal.NewFromInt(20), decimal.Zero))

	bill := s.Bill()
	require.True(t, bill.GrandTotal.Equal(decimal.NewFromInt(472)))
	require.True(t, s.Bill().GrandTotal.Equal(bill.GrandTotal))

	err := s.SetAdjustments(decimal.NewFromInt(-1), decimal.NewFromInt(5))
	require.ErrorIs(t, err, ErrInvalidAdjustment)
	require.True(t, s.Discount.Equal(decimal.NewFromInt(20)))
	require.True(t, s.ExtraDiscount.IsZero())

	s.Reset()
	require.Zero(t, s.Cart.Len())
	require.True(t, s.Discount.IsZero())
	require.True(t, s.TaxRate.Equal(decimal.NewFromInt(18)))
}

func TestManagerSerialisesSessionOperations(t *testing.T) {
	m := newTestManager(&clock{now: time.Now()})
	state := m.Open()
	bulb := catalog.DemoProducts()[0]

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With(state.ID, func(s *Session) error {
				s.Cart.AddProduct(bulb)
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, m.With(state.ID, func(s *Session) error {
		entries := s.Cart.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, 64, entries[0].Quantity)
		return nil
	}))
}

func TestManagerWithPropagatesError(t *testing.T) {
	m := newTestManager(&clock{now: time.Now()})
	state := m.Open()
	boom := errors.New("boom")
	require.ErrorIs(t, m.With(state.ID, func(*Session) error { return boom }), boom)
}

func TestManagerUnknownAndClosed(t *testing.T) {
	m := newTestManager(&clock{now: time.Now()})
	require.ErrorIs(t, m.With("nope", func(*Session) error { return nil }), ErrSessionNotFound)

	state := m.Open()
	require.NoError(t, m.Close(state.ID))
	require.ErrorIs(t, m.Close(state.ID), ErrSessionNotFound)
	require.ErrorIs(t, m.With(state.ID, func(*Session) error { return nil }), ErrSessionNotFound)
	require.Zero(t, m.Len())
}

func TestManagerSweepExpiresIdleSessions(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	idle := m.Open()
	busy := m.Open()

	c.Advance(50 * time.Minute)
	require.NoError(t, m.With(busy.ID, func(*Session) error { return nil }))

	c.Advance(20 * time.Minute)
	require.Equal(t, 1, m.Sweep(c.Now()))
	require.Equal(t, 1, m.Len())
	require.ErrorIs(t, m.With(idle.ID, func(*Session) error { return nil }), ErrSessionNotFound)
	require.NoError(t, m.With(busy.ID, func(*Session) error { return nil }))
}

func TestManagerSweepSkipsSessionsInUse(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	state := m.Open()

	require.NoError(t, m.With(state.ID, func(*Session) error {
		require.Zero(t, m.Sweep(c.Now().Add(2*time.Hour)))
		return nil
	}))
	require.Equal(t, 1, m.Len())
}
