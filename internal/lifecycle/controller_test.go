package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jmxpoller/internal/config"
	"jmxpoller/internal/model"
	"jmxpoller/internal/observability"
	"jmxpoller/internal/sysnotify"
	logx "jmxpoller/pkg/logx"
)

// fakeClient is a hand-written fake for the management-protocol client; it
// never touches the network.
type fakeClient struct{}

func (fakeClient) Fetch(ctx context.Context, server *model.Server, query *model.Query) ([]model.Result, error) {
	return []model.Result{{ObjectName: query.ObjectName, Attribute: "Value", Value: 1}}, nil
}

// fakeWriter is a hand-written OutputWriter fake recording Start/Close
// calls so tests can assert the exact startup/shutdown ordering.
type fakeWriter struct {
	mu       sync.Mutex
	started  int
	closed   int
	name     string
	failNext bool
}

func (w *fakeWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failNext {
		return errFakeWriterStart
	}
	w.started++
	return nil
}
func (w *fakeWriter) ValidateSetup(ctx context.Context, s *model.Server, q *model.Query) error {
	return nil
}
func (w *fakeWriter) Write(ctx context.Context, s *model.Server, q *model.Query, r []model.Result) error {
	return nil
}
func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}
func (w *fakeWriter) Name() string { return w.name }

var errFakeWriterStart = &fakeErr{"fake writer start failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func writeProcessConfig(t *testing.T, dir string, host string) {
	t.Helper()
	content := `{
  "servers": [
    {"host": "` + host + `", "port": 9010, "run_period_seconds": 1,
     "queries": [{"object_name": "java.lang:type=Memory", "attributes": ["HeapMemoryUsage"]}],
     "output_writers": [{"type": "log"}]}
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "servers.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write process config: %v", err)
	}
}

func newTestController(t *testing.T, onFatal func(error)) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	writeProcessConfig(t, dir, "db1")

	cfg := config.Config{
		ProcessConfigDirOrFile: dir,
		RunPeriodSeconds:       1,
		Executor: config.ExecutorConfig{
			QueryPool:  config.PoolConfig{MaxWorkers: 2, QueueSize: 4},
			ResultPool: config.PoolConfig{MaxWorkers: 2, QueueSize: 4},
		},
	}
	obs := observability.New()
	notify := sysnotify.New(false, logx.Nop())
	c := New(cfg, fakeClient{}, logx.Nop(), obs, notify, onFatal)
	return c, dir
}

func TestStartThenStopTransitionsCleanly(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State(); got != StateRunning {
		t.Fatalf("State() after Start = %v, want running", got)
	}
	if len(c.Servers()) != 1 {
		t.Fatalf("len(Servers()) = %d, want 1", len(c.Servers()))
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.State(); got != StateStopped {
		t.Fatalf("State() after Stop = %v, want stopped", got)
	}
	if len(c.Servers()) != 0 {
		t.Fatalf("len(Servers()) after Stop = %d, want 0", len(c.Servers()))
	}
}

func TestStartTwiceReturnsErrAlreadyStarted(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	if err := c.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestStopWithoutStartReturnsErrAlreadyStopped(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.Stop(context.Background()); err != ErrAlreadyStopped {
		t.Fatalf("Stop() = %v, want ErrAlreadyStopped", err)
	}
}

func TestReloadWithoutStartReturnsErrNotRunning(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.Reload(context.Background()); err != ErrNotRunning {
		t.Fatalf("Reload() = %v, want ErrNotRunning", err)
	}
}

func TestReloadPublishesNewServerList(t *testing.T) {
	c, dir := newTestController(t, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	writeProcessConfig(t, dir, "db2")
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	servers := c.Servers()
	if len(servers) != 1 || servers[0].Host != "db2" {
		t.Fatalf("Servers() after Reload = %+v, want one db2 server", servers)
	}
}

func TestReloadFailurePropagatesToOnFatal(t *testing.T) {
	var mu sync.Mutex
	var fatalErr error
	onFatal := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		fatalErr = err
	}

	c, dir := newTestController(t, onFatal)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	if err := os.WriteFile(filepath.Join(dir, "servers.json"), []byte(`{"servers": [{"unknown_field": true}]}`), 0o644); err != nil {
		t.Fatalf("write malformed config: %v", err)
	}

	c.onReload(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if fatalErr == nil {
		t.Fatal("expected onFatal to be invoked with a non-nil error")
	}
}

func TestRunStandaloneStartsAndStops(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.RunStandalone(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("RunStandalone: %v", err)
	}
	if got := c.State(); got != StateStopped {
		t.Fatalf("State() after RunStandalone = %v, want stopped", got)
	}
}

func TestStopIsIdempotentAfterRunStandalone(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.RunStandalone(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("RunStandalone: %v", err)
	}
	if err := c.Stop(context.Background()); err != ErrAlreadyStopped {
		t.Fatalf("second Stop() = %v, want ErrAlreadyStopped", err)
	}
}

func TestExitHookIsArmedAfterStartAndDisarmedAfterStop(t *testing.T) {
	c, _ := newTestController(t, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	hook := c.ExitHook()
	if hook == nil {
		t.Fatal("ExitHook() = nil after Start")
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Firing the hook after a clean Stop must be a no-op: Stop already
	// disarmed it, so this must not block or panic.
	hook.Fire()
}
