package model

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// nonce is a per-process monotonic counter. Combined with a random suffix it
// guarantees JobKeys assigned within a single process run never collide,
// even when two schedule calls land in the same nanosecond (JmxTransformer's
// original scheme used System.nanoTime() alone for trigger names, which the
// source itself flags as a latent collision risk — see DESIGN.md).
var nonce uint64

// JobKey is the unique identity assigned to a scheduled job:
// "<host>:<port>-<monotonic-nonce>-<random>". It is discarded when the job
// is descheduled (on reload or shutdown) and never reused.
type JobKey string

// NewJobKey mints a JobKey for server. It is also used, unchanged, as the
// name of the Trigger scheduled for that job — the original's trigger-name
// scheme omitted the random suffix; this implementation reuses the full
// JobKey so trigger names carry the same collision-freedom as job names.
func NewJobKey(server *Server) JobKey {
	n := atomic.AddUint64(&nonce, 1)
	return JobKey(fmt.Sprintf("%s-%d-%s", server.Key(), n, shortRandom()))
}

func shortRandom() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:5])
}

// MonotonicNanos is exposed for components that want a human-debuggable
// timestamp component alongside a JobKey (e.g. log lines); it is not part
// of the JobKey identity itself.
func MonotonicNanos() int64 { return time.Now().UnixNano() }
