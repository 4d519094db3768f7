package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "jmxpoller/pkg/logx"
)

func testConfig() Config {
	return Config{
		Enabled:             true,
		Workers:             2,
		QueueSize:           2,
		DefaultTimeout:      time.Second,
		CircuitTripFailures: -1,
	}
}

func TestServiceSubmitRunsTask(t *testing.T) {
	s := New("t.query", testConfig(), logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	var mu sync.Mutex
	err := s.Submit(Task{
		Name: "tick",
		Run: func(ctx context.Context) error {
			mu.Lock()
			ran = true
			mu.Unlock()
			wg.Done()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestServiceSubmitDisabledPool(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s := New("t.query", cfg, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	err := s.Submit(Task{Name: "tick", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Submit on disabled pool: got %v, want ErrDisabled", err)
	}
}

func TestServiceSubmitAfterStopIsRejected(t *testing.T) {
	s := New("t.query", testConfig(), logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	err := s.Submit(Task{Name: "tick", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Submit after Stop: got %v, want ErrStopped", err)
	}
}

// TestServiceSubmitDropsOnFullQueue blocks every worker on an unblocking gate
// so the queue (capacity 1, set below) genuinely fills, then asserts the
// next Submit is dropped rather than retried or buffered (§4.3's sole
// admission-control mechanism).
func TestServiceSubmitDropsOnFullQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	s := New("t.query", cfg, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	submit := func() error {
		return s.Submit(Task{
			Name: "blocker",
			Run: func(ctx context.Context) error {
				close(started)
				<-block
				return nil
			},
		})
	}

	if err := submit(); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	<-started // worker now occupied; queue is empty but the one worker is busy

	if err := s.Submit(Task{Name: "fill-queue", Run: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("second submit (fills queue): %v", err)
	}

	err := s.Submit(Task{Name: "overflow", Run: func(ctx context.Context) error { return nil }})
	close(block)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third submit: got %v, want ErrQueueFull", err)
	}

	snap := s.Snapshot()
	if snap.DroppedQueueFull == 0 {
		t.Fatal("expected DroppedQueueFull to be incremented")
	}
}

func TestServiceSnapshotReportsQueueCapacity(t *testing.T) {
	s := New("t.query", testConfig(), logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if snap.QueueCap != 2 {
		t.Fatalf("QueueCap = %d, want 2", snap.QueueCap)
	}
	if !snap.Enabled {
		t.Fatal("Enabled = false, want true")
	}
}
