// Package pool implements the bounded worker pool used for both halves of
// the Executor Repository: one pool per Server for query execution, and a
// second, independent pool per Server for result/writer dispatch. Keeping
// query and result dispatch on separate pool instances means a slow sink
// cannot starve query execution for the same server (§4.3, §5).
package pool

import (
	"context"
	"sync"
	"time"
)

// Config controls one bounded pool.
//
// Per spec §4.3, a full queue is the sole admission-control mechanism: there
// is no retry and no buffering beyond the queue itself. Callers that want
// single-attempt, drop-on-full semantics submit tasks with TaskOptions left
// at its zero value (RetryMax resolves to 1 effective attempt via
// withDefaults, and Overlap defaults to allowing concurrent ticks — the
// query pool's own bounded queue is the only backpressure).
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// DefaultTimeout is used when Task.Timeout is 0.
	DefaultTimeout time.Duration

	// MaxQueueDelay drops tasks that have waited longer than this in the
	// queue. 0 disables stale-queue dropping.
	MaxQueueDelay time.Duration

	HistorySize int
	RetryMax    int

	// Circuit breaker (consecutive-failure based). Set CircuitTripFailures
	// to -1 to disable: the query/result pools disable it by default, since
	// spec §4.3 names the bounded queue as the sole admission-control
	// mechanism and a circuit breaker would add a second one.
	CircuitTripFailures int
	CircuitBaseDelay    time.Duration
	CircuitMaxDelay     time.Duration
	CircuitResetAfter   time.Duration
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	OverlapSkipIfRunning
)

type TaskOptions struct {
	Overlap       OverlapPolicy
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64

	CircuitTripFailures int
}

func (o TaskOptions) withDefaults(cfg Config) TaskOptions {
	if o.RetryMax <= 0 {
		o.RetryMax = cfg.RetryMax
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 15 * time.Second
	}
	if o.RetryJitter <= 0 {
		o.RetryJitter = 0.2
	}
	if o.Overlap != OverlapAllow && o.Overlap != OverlapSkipIfRunning {
		o.Overlap = OverlapAllow
	}
	return o
}

// RunState tracks whether a task is already in-flight, for OverlapSkipIfRunning.
type RunState struct {
	mu       sync.Mutex
	inflight int
}

func (s *RunState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// Task is a unit of work executed by the pool: one query fetch, or one
// writer-dispatch batch.
type Task struct {
	ID             string
	Name           string
	Timeout        time.Duration
	Run            func(ctx context.Context) error
	Opt            TaskOptions
	ConcurrencyKey string
	State          *RunState
}

// Snapshot is a point-in-time view for observability.
type Snapshot struct {
	Enabled  bool
	Workers  int
	QueueLen int
	QueueCap int

	ActiveMax        int
	ActiveLimit      int
	InFlight         int
	WaitingForPermit int

	Dropped          uint64
	DroppedQueueFull uint64
	DroppedStale     uint64

	DefaultTimeout time.Duration
	MaxQueueDelay  time.Duration
	RetryMax       int

	CircuitTotal int
	CircuitOpen  int

	History []HistoryItem
}
