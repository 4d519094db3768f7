package scheduler

import (
	"math/rand"
	"time"
)

// Spread returns a uniform random offset in [0, period) — the jitter
// createTrigger applies to every trigger's start (an interval trigger's
// first fire, or a cron trigger's registration) so that jobs scheduled
// together at reload don't tick in lockstep (§4.6, P1).
func Spread(period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(period)))
}
