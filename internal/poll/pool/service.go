package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"jmxpoller/internal/runtime/supervisor"
	logx "jmxpoller/pkg/logx"
)

type state int32

const (
	stateStopped state = iota
	stateStarting
	stateRunning
	stateStopping
)

// queuedTask pairs a Task with the time it was accepted, so the worker can
// drop it if MaxQueueDelay has already elapsed by the time it is dequeued.
type queuedTask struct {
	task     Task
	enqueued time.Time
}

// Service is one bounded pool: a fixed-size worker set draining a fixed-size
// queue, with no retry and no second buffering layer. The Executor
// Repository creates two of these per Server — a query pool and a result
// pool — so a stalled sink cannot starve query execution (§4.3, §5).
type Service struct {
	name string
	cfg  Config
	log  logx.Logger

	// dropLog throttles the "queue full" warning to once per 5s: a stuck
	// sink can otherwise fill the log with one line per rejected task.
	dropLog *logx.Throttled

	mu     sync.Mutex
	st     state
	queue  chan queuedTask
	stopCh chan struct{}
	sup    *supervisor.Supervisor

	permits          chan struct{}
	permitLimit      int32
	permitMax        int32
	inFlight         int32
	waitingForPermit int32

	circuits circuitStore

	histMu  sync.Mutex
	history []HistoryItem

	dropped          uint64
	droppedQueueFull uint64
	droppedStale     uint64
}

// New builds an unstarted pool named name (Start is a no-op unless
// cfg.Enabled is set). name is used as a log
// and metrics label (e.g. "server1.query" or "server1.result").
func New(name string, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{name: name, cfg: cfg, log: log, dropLog: logx.NewThrottled(log, 5*time.Second)}
}

func (s *Service) Name() string { return s.name }

// Start allocates the queue/permit channels and launches cfg.Workers worker
// goroutines plus one autoscale goroutine, all under a dedicated supervisor.
// Calling Start on a disabled pool is a no-op; calling it twice returns an
// error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		return nil
	}
	if s.st != stateStopped {
		return fmt.Errorf("pool %s: already started", s.name)
	}
	s.st = stateStarting

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := s.cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	s.queue = make(chan queuedTask, queueSize)
	s.stopCh = make(chan struct{})
	s.permits = make(chan struct{}, workers)
	s.permitMax = int32(workers)
	s.permitLimit = initialPermitLimit(workers)
	for i := int32(0); i < s.permitLimit; i++ {
		s.permits <- struct{}{}
	}

	s.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(s.log))
	for i := 0; i < workers; i++ {
		idx := i
		s.sup.GoRestart(fmt.Sprintf("%s.worker.%d", s.name, idx), func(wctx context.Context) error {
			s.worker(wctx, s.stopCh, s.queue)
			return nil
		})
	}
	s.sup.GoRestart0(s.name+".autoscale", func(actx context.Context) {
		s.autoscale(actx, s.stopCh, s.queue)
	})

	s.st = stateRunning
	s.log.Debug("pool started", logx.String("pool", s.name), logx.Int("workers", workers), logx.Int("queue_size", queueSize))
	return nil
}

// Stop signals the pool stopped and waits (up to ctx's deadline) for workers
// to drain. In-flight tasks are allowed to finish; nothing new is dequeued.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.st == stateStopped || s.st == stateStarting && s.sup == nil {
		s.mu.Unlock()
		return nil
	}
	s.st = stateStopping
	stopCh := s.stopCh
	sup := s.sup
	s.mu.Unlock()

	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	var err error
	if sup != nil {
		err = sup.Stop(ctx)
	}

	s.mu.Lock()
	s.st = stateStopped
	s.mu.Unlock()
	return err
}

// Submit enqueues t without blocking: if the queue is full the task is
// dropped and ErrQueueFull is returned (§4.3's sole admission-control
// mechanism — there is no retry and no secondary buffer).
func (s *Service) Submit(t Task) error {
	s.mu.Lock()
	st := s.st
	queue := s.queue
	s.mu.Unlock()

	if !s.cfg.Enabled {
		return ErrDisabled
	}
	switch st {
	case stateStopped:
		return ErrStopped
	case stateStopping:
		return ErrStopping
	}

	opt := t.Opt.withDefaults(s.cfg)
	t.Opt = opt

	key := t.ConcurrencyKey
	if key == "" {
		key = t.Name
	}
	if open, until := s.circuitIsOpen(time.Now(), key, s.cfg, opt); open {
		s.log.Debug("pool.circuit_open", logx.String("pool", s.name), logx.String("task", t.Name), logx.Time("until", until))
		return ErrCircuitOpen
	}

	if opt.Overlap == OverlapSkipIfRunning && t.State != nil {
		if !t.State.tryAcquire() {
			return ErrOverlapSkip
		}
	}

	select {
	case queue <- queuedTask{task: t, enqueued: time.Now()}:
		return nil
	default:
		if opt.Overlap == OverlapSkipIfRunning && t.State != nil {
			t.State.release()
		}
		atomic.AddUint64(&s.dropped, 1)
		atomic.AddUint64(&s.droppedQueueFull, 1)
		s.dropLog.Warn("pool queue full, dropping task",
			logx.String("pool", s.name),
			logx.String("task", t.Name),
			logx.String("queue_depth", humanize.Comma(int64(len(queue)))),
			logx.Uint64("dropped_total", atomic.LoadUint64(&s.dropped)),
		)
		return ErrQueueFull
	}
}

// Snapshot returns a point-in-time view for observability (Prometheus
// collectors and the self-observability log line read this).
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()

	ql, qc := 0, s.cfg.QueueSize
	if queue != nil {
		ql, qc = len(queue), cap(queue)
	}
	total, open := s.circuitSnapshot(time.Now(), s.cfg)

	s.histMu.Lock()
	hist := make([]HistoryItem, len(s.history))
	copy(hist, s.history)
	s.histMu.Unlock()

	return Snapshot{
		Enabled:          s.cfg.Enabled,
		Workers:          s.cfg.Workers,
		QueueLen:         ql,
		QueueCap:         qc,
		ActiveMax:        int(atomic.LoadInt32(&s.permitMax)),
		ActiveLimit:      int(atomic.LoadInt32(&s.permitLimit)),
		InFlight:         int(atomic.LoadInt32(&s.inFlight)),
		WaitingForPermit: int(atomic.LoadInt32(&s.waitingForPermit)),
		Dropped:          atomic.LoadUint64(&s.dropped),
		DroppedQueueFull: atomic.LoadUint64(&s.droppedQueueFull),
		DroppedStale:     atomic.LoadUint64(&s.droppedStale),
		DefaultTimeout:   s.cfg.DefaultTimeout,
		MaxQueueDelay:    s.cfg.MaxQueueDelay,
		RetryMax:         s.cfg.RetryMax,
		CircuitTotal:     total,
		CircuitOpen:      open,
		History:          hist,
	}
}

func (s *Service) recordHistory(item HistoryItem) {
	size := s.cfg.HistorySize
	if size <= 0 {
		return
	}
	s.histMu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.histMu.Unlock()
}
