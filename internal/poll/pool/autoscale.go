package pool

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	logx "jmxpoller/pkg/logx"
)

// initialPermitLimit returns a conservative starting concurrency limit; it
// ramps up if queue backlog persists.
func initialPermitLimit(maxWorkers int) int32 {
	if maxWorkers <= 1 {
		return 1
	}
	if maxWorkers == 2 {
		return 1
	}
	return 2
}

func (s *Service) acquirePermit(ctx context.Context, stopCh <-chan struct{}) bool {
	ch := s.permits
	if ch == nil {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	case <-ch:
		return true
	}
}

func (s *Service) releasePermit() {
	ch := s.permits
	if ch == nil {
		return
	}
	lim := atomic.LoadInt32(&s.permitLimit)
	if lim <= 0 {
		return
	}
	in := atomic.LoadInt32(&s.inFlight)
	avail := int32(len(ch))
	if avail+in >= lim {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Service) setPermitLimit(n int32) {
	max := atomic.LoadInt32(&s.permitMax)
	if max <= 0 {
		max = 1
	}
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	atomic.StoreInt32(&s.permitLimit, n)
	s.rebalancePermits()
}

func (s *Service) rebalancePermits() {
	ch := s.permits
	if ch == nil {
		return
	}
	lim := atomic.LoadInt32(&s.permitLimit)
	if lim <= 0 {
		return
	}
	in := atomic.LoadInt32(&s.inFlight)
	avail := int32(len(ch))

	for avail+in > lim {
		select {
		case <-ch:
			avail--
		default:
			return
		}
	}
	for avail+in < lim {
		select {
		case ch <- struct{}{}:
			avail++
		default:
			return
		}
	}
}

// autoscale periodically adjusts permitLimit based on queue backlog and
// runtime resource pressure: scale down fast under memory/GC/goroutine
// pressure, scale up slowly under sustained backlog, scale down on
// sustained idle. One instance runs per pool (query pool and result pool
// each get their own).
func (s *Service) autoscale(ctx context.Context, stopCh <-chan struct{}, queue <-chan queuedTask) {
	const (
		tickEvery     = 2 * time.Second
		upCooldown    = 6 * time.Second
		downCooldown  = 3 * time.Second
		idleDownAfter = 3
	)

	t := time.NewTicker(tickEvery)
	defer t.Stop()

	var lastChange time.Time
	idleTicks := 0

	var ms runtime.MemStats
	var lastPause uint64
	var lastGC uint32

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-t.C:
		}

		ql, qc := 0, 0
		if queue != nil {
			ql = len(queue)
			qc = cap(queue)
		}

		lim := atomic.LoadInt32(&s.permitLimit)
		maxLim := atomic.LoadInt32(&s.permitMax)
		if maxLim <= 0 {
			maxLim = 1
		}
		in := atomic.LoadInt32(&s.inFlight)
		waiting := atomic.LoadInt32(&s.waitingForPermit)

		runtime.ReadMemStats(&ms)
		gos := runtime.NumGoroutine()

		pauseDelta := ms.PauseTotalNs - lastPause
		gcDelta := ms.NumGC - lastGC
		lastPause = ms.PauseTotalNs
		lastGC = ms.NumGC

		memLimit := debug.SetMemoryLimit(-1)
		memLimitSet := memLimit > 0 && memLimit < (1<<60)

		pressure := false
		reason := ""
		downBy := int32(0)

		if memLimitSet {
			h := int64(ms.HeapInuse)
			if h > (memLimit*85)/100 {
				pressure, reason, downBy = true, "mem>85%", 2
			} else if h > (memLimit*75)/100 {
				pressure, reason, downBy = true, "mem>75%", 1
			}
		} else {
			if ms.HeapInuse > 1024<<20 {
				pressure, reason, downBy = true, "heap>1GiB", 2
			} else if ms.HeapInuse > 768<<20 {
				pressure, reason, downBy = true, "heap>768MiB", 1
			}
		}

		if !pressure && gcDelta > 0 && pauseDelta > uint64(250*time.Millisecond) {
			pressure, reason, downBy = true, "gc_pause", 1
		}

		if !pressure {
			if gos > 3000 {
				pressure, reason, downBy = true, "goroutines>3000", 2
			} else if gos > 1500 {
				pressure, reason, downBy = true, "goroutines>1500", 1
			}
		}

		now := time.Now()
		target := lim

		if pressure {
			if downBy <= 0 {
				downBy = 1
			}
			target = lim - downBy
			if target < 1 {
				target = 1
			}
			if target != lim && (lastChange.IsZero() || now.Sub(lastChange) >= downCooldown) {
				old := lim
				s.setPermitLimit(target)
				lastChange = now
				if !s.log.IsZero() {
					s.log.Debug("pool.active_limit", logx.Int("from", int(old)), logx.Int("to", int(target)), logx.String("reason", reason), logx.Int("queue", ql), logx.Int("queue_cap", qc), logx.Int("inflight", int(in)), logx.Int("waiting", int(waiting)), logx.Uint64("heap_inuse", ms.HeapInuse), logx.Int("goroutines", gos))
				}
			}
			continue
		}

		backlog := int32(ql) + waiting
		if backlog == 0 && in == 0 {
			idleTicks++
		} else {
			idleTicks = 0
		}

		if idleTicks >= idleDownAfter && lim > 1 {
			if lastChange.IsZero() || now.Sub(lastChange) >= 10*time.Second {
				old := lim
				target = lim - 1
				s.setPermitLimit(target)
				lastChange = now
				idleTicks = 0
				if !s.log.IsZero() {
					s.log.Debug("pool.active_limit", logx.Int("from", int(old)), logx.Int("to", int(target)), logx.String("reason", "idle"), logx.Int("queue", ql), logx.Int("queue_cap", qc))
				}
			}
			continue
		}

		if backlog > 0 && lim < maxLim {
			ratio := 0.0
			if qc > 0 {
				ratio = float64(ql) / float64(qc)
			}
			bump := int32(0)
			if backlog > lim {
				bump = 1
			}
			if ratio > 0.85 {
				bump = max32(bump, 2)
			} else if ratio > 0.60 {
				bump = max32(bump, 1)
			}
			if bump > 0 && (lastChange.IsZero() || now.Sub(lastChange) >= upCooldown) {
				old := lim
				target = lim + bump
				if target > maxLim {
					target = maxLim
				}
				s.setPermitLimit(target)
				lastChange = now
				if !s.log.IsZero() {
					s.log.Debug("pool.active_limit", logx.Int("from", int(old)), logx.Int("to", int(target)), logx.String("reason", "backlog"), logx.Int("queue", ql), logx.Int("queue_cap", qc), logx.Float64("q_ratio", ratio))
				}
			}
		}
	}
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
