package resilience

import (
	"math/rand/v2"
	"time"
)

const maxDuration = time.Duration(1<<63 - 1)

// Backoff returns base doubled for every attempt after the first, spread by
// ±jitter (0.2 is 20%). Attempts below 1 count as 1.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d > maxDuration/2 {
			d = maxDuration
			break
		}
		d *= 2
	}
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

// CappedBackoff is Backoff limited to ceiling. The worker uses it as the asynq
// retry delay for ledger writes.
func CappedBackoff(base, ceiling time.Duration, attempt int, jitter float64) time.Duration {
	d := Backoff(base, attempt, jitter)
	if ceiling > 0 && (d > ceiling || d <= 0) {
		return ceiling
	}
	return d
}
