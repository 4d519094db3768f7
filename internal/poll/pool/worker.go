package pool

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	logx "jmxpoller/pkg/logx"
)

// worker dequeues tasks one at a time, dropping any that have already aged
// past MaxQueueDelay, then runs them through execOne.
func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan queuedTask) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qt, ok := <-queue:
			if !ok {
				return
			}
			if s.cfg.MaxQueueDelay > 0 && time.Since(qt.enqueued) > s.cfg.MaxQueueDelay {
				atomic.AddUint64(&s.dropped, 1)
				atomic.AddUint64(&s.droppedStale, 1)
				if qt.task.Opt.Overlap == OverlapSkipIfRunning && qt.task.State != nil {
					qt.task.State.release()
				}
				s.log.Warn("pool.stale_dropped", logx.String("pool", s.name), logx.String("task", qt.task.Name), logx.Duration("waited", time.Since(qt.enqueued)))
				continue
			}
			s.execOne(ctx, stopCh, qt, rng)
		}
	}
}

// execOne acquires a concurrency permit, runs the task with retry/backoff
// per its TaskOptions, and records history and circuit-breaker outcome.
func (s *Service) execOne(ctx context.Context, stopCh <-chan struct{}, qt queuedTask, rng *rand.Rand) {
	t := qt.task
	opt := t.Opt

	atomic.AddInt32(&s.waitingForPermit, 1)
	acquired := s.acquirePermit(ctx, stopCh)
	atomic.AddInt32(&s.waitingForPermit, -1)
	if !acquired {
		if opt.Overlap == OverlapSkipIfRunning && t.State != nil {
			t.State.release()
		}
		return
	}
	atomic.AddInt32(&s.inFlight, 1)
	defer func() {
		atomic.AddInt32(&s.inFlight, -1)
		s.releasePermit()
		if opt.Overlap == OverlapSkipIfRunning && t.State != nil {
			t.State.release()
		}
	}()

	queueDelay := time.Since(qt.enqueued)
	start := time.Now()

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	key := t.ConcurrencyKey
	if key == "" {
		key = t.Name
	}

	attempts := opt.RetryMax
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		runCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := runWithRecover(runCtx, t.Run)
		if cancel != nil {
			cancel()
		}
		lastErr = err
		if err == nil {
			break
		}
		if IsNoRetry(err) {
			break
		}
		if attempt >= attempts {
			break
		}

		delay := backoffDelay(opt, attempt, rng)
		if ra, ok := err.(RetryAfterError); ok {
			delay = ra.RetryAfter()
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = attempts
		case <-stopCh:
			attempt = attempts
		case <-time.After(delay):
		}
	}

	dur := time.Since(start)
	s.circuitRecordResult(time.Now(), key, s.cfg, opt, lastErr)

	item := HistoryItem{ID: t.ID, Name: t.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	if lastErr != nil {
		item.Error = lastErr.Error()
		s.log.Warn("pool.task_failed", logx.String("pool", s.name), logx.String("task", t.Name), logx.Err(lastErr), logx.Duration("duration", dur), logx.Duration("queue_delay", queueDelay))
	}
	s.recordHistory(item)
}

func runWithRecover(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NoRetry(&panicError{v: r})
		}
	}()
	return fn(ctx)
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "panic in task: " + toString(p.v) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}

// backoffDelay computes a jittered exponential backoff delay for the given
// 1-indexed attempt number.
func backoffDelay(opt TaskOptions, attempt int, rng *rand.Rand) time.Duration {
	base := opt.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxDelay := opt.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 15 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			d = maxDelay
			break
		}
	}
	jitter := opt.RetryJitter
	if jitter <= 0 {
		jitter = 0.2
	}
	spread := float64(d) * jitter
	d += time.Duration(rng.Float64()*2*spread - spread)
	if d < 0 {
		d = base
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
