// Package backoff is the one exponential-backoff-with-cap shape shared by
// the pool's per-task circuit breaker (internal/poll/pool) and the
// goroutine supervisor's restart loop (internal/runtime/supervisor): both
// wait base*2^attempt, capped at max, after a failing key/goroutine. The
// pool's per-submission retry delay (backoffDelay in
// internal/poll/pool/worker.go) is computed separately.
package backoff

import (
	"math/rand"
	"time"
)

// Exponential returns base*2^attempt capped at max, with up to jitterFrac
// of that value added as uniform random jitter (0 disables jitter). attempt
// is 0-indexed: attempt 0 returns base (before any doubling).
func Exponential(attempt int, base, max time.Duration, jitterFrac float64) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	if jitterFrac > 0 {
		j := time.Duration(float64(d) * jitterFrac)
		if j > 0 {
			d += time.Duration(rand.Int63n(int64(j) + 1))
		}
	}
	return d
}
