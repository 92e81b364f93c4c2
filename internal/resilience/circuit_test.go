package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/resilience"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBreakerTransitions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{MinRequests: 2, OpenFor: time.Minute, Now: clock.Now})
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	clock.Advance(time.Minute)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{OpenFor: time.Second, Now: clock.Now})
	ctx := context.Background()

	breaker.Report(ctx, false)
	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerHalfOpenAdmitsOneProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{OpenFor: time.Second, Now: clock.Now})
	ctx := context.Background()

	breaker.Report(ctx, false)
	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	require.False(t, breaker.Allow(ctx), "second caller must wait for the probe")
	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerRatioOverWindow(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{MinRequests: 4, FailureRatio: 0.5, Window: 4})
	ctx := context.Background()

	// failures spread over more than one window never reach half of it
	for _, ok := range []bool{false, true, true, true, false, true, true, true} {
		breaker.Report(ctx, ok)
		require.Equal(t, resilience.Closed, breaker.State())
	}
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State())
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}

func TestBreakerDo(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{OpenFor: time.Hour})
	ctx := context.Background()
	boom := errors.New("redis down")

	require.ErrorIs(t, breaker.Do(ctx, func(context.Context) error { return boom }), boom)

	called := false
	err := breaker.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d3 := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d3, base*2-(base*2/5))
	require.LessOrEqual(t, d3, base*2+(base*2/5))
}

func TestCappedBackoff(t *testing.T) {
	require.Equal(t, 2*time.Second, resilience.CappedBackoff(time.Second, time.Minute, 2, 0))
	require.Equal(t, time.Minute, resilience.CappedBackoff(time.Second, time.Minute, 10, 0))
	require.Equal(t, time.Minute, resilience.CappedBackoff(time.Second, time.Minute, 500, 0))
	require.Equal(t, time.Hour, resilience.CappedBackoff(time.Hour, time.Hour, 1<<20, 0.2))
}
