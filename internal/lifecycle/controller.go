// Package lifecycle implements the Lifecycle Controller (§4.1): the
// top-level state machine, startup/shutdown ordering, and the reload path.
// It exclusively owns the MasterServerList, the Scheduler, and the
// Executor Repository (§3 ownership table).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"jmxpoller/internal/config"
	"jmxpoller/internal/model"
	"jmxpoller/internal/observability"
	"jmxpoller/internal/parser"
	"jmxpoller/internal/poll/job"
	"jmxpoller/internal/poll/repository"
	"jmxpoller/internal/poll/scheduler"
	"jmxpoller/internal/sysnotify"
	logx "jmxpoller/pkg/logx"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// settleDelay is the fixed Quartz-scheduler "settle sleep" the original
// source applies after stopping the scheduler. §9 flags it as a workaround
// to preserve verbatim rather than a property to derive; a timing-wheel
// scheduler replacement could drop it.
const settleDelay = 1500 * time.Millisecond

// Controller is the Lifecycle Controller.
type Controller struct {
	cfg    config.Config
	log    logx.Logger
	client job.Client
	obs    *observability.Registry
	notify *sysnotify.Notifier

	// onFatal is invoked when a reload fails (§4.5: "propagated as a fatal
	// runtime error ... converted to process exit"). cmd/jmxpoller wires
	// this to log the error and os.Exit(1).
	onFatal func(error)

	mu      sync.Mutex
	state   State
	list    *model.MasterServerList
	sched   *scheduler.Scheduler
	runner  *job.Runner
	watcher *config.Watcher
	hook    *ExitHook

	repo atomic.Pointer[repository.Repository]
}

func New(cfg config.Config, client job.Client, log logx.Logger, obs *observability.Registry, notify *sysnotify.Notifier, onFatal func(error)) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		cfg:     cfg,
		log:     log,
		client:  client,
		obs:     obs,
		notify:  notify,
		onFatal: onFatal,
		list:    model.NewMasterServerList(),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Servers returns the currently published server list (read-only).
func (c *Controller) Servers() []*model.Server { return c.list.Servers() }

// Start implements §4.1's startup order exactly.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return ErrAlreadyStarted
	}
	c.state = StateStarting

	c.runner = job.NewRunner(c.client, c.log)

	// 1. Start Scheduler.
	c.sched = scheduler.New(c.log, c.onTick)
	if err := c.sched.Start(ctx); err != nil {
		c.state = StateStopped
		return fmt.Errorf("lifecycle: start scheduler: %w", err)
	}

	// 2. Start Config Watcher.
	watcher, err := config.New(c.cfg.ProcessConfigDirOrFile, c.onReload, c.log)
	if err != nil {
		_ = c.sched.Stop(context.Background())
		c.state = StateStopped
		return fmt.Errorf("lifecycle: start watcher: %w", err)
	}
	c.watcher = watcher
	c.watcher.Start(ctx)

	// 3-6: parse, build repository, register observability, start/validate
	// writers, schedule jobs.
	if err := c.loadAndScheduleLocked(ctx); err != nil {
		_ = c.sched.Stop(context.Background())
		c.watcher.Stop()
		c.state = StateStopped
		return fmt.Errorf("lifecycle: start: %w", err)
	}

	// 7. Install process-exit hook.
	c.hook = NewExitHook(func() { _ = c.Stop(context.Background()) })
	c.hook.Arm()

	c.state = StateRunning
	c.notify.Ready()
	c.notify.StartWatchdog(ctx)
	c.log.Info("lifecycle started", logx.Int("servers", len(c.list.Servers())))
	return nil
}

// ExitHook returns the armed process-exit hook installed by Start, for the
// entrypoint to wire to a signal handler. Nil before Start succeeds.
func (c *Controller) ExitHook() *ExitHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hook
}

// Stop implements §4.1's shutdown order: reversed, best-effort, composed
// into a LifecycleError.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrAlreadyStopped
	}
	c.state = StateStopping

	servers := c.list.Servers()
	var composite LifecycleError

	// 1. Remove process-exit hook if still armed.
	if c.hook != nil {
		c.hook.Disarm()
	}

	// 2. Scheduler: graceful stop, plus the fixed settle delay (§9).
	runStep(ctx, c.log, &composite, "scheduler.stop", 30*time.Second, func(stepCtx context.Context) error {
		err := c.sched.Stop(stepCtx)
		select {
		case <-time.After(settleDelay):
		case <-stepCtx.Done():
		}
		return err
	})

	// 3. Shut down each query pool, then each result pool (repo.Clear does
	// this with a 10s-per-pool ceiling internally).
	runStep(ctx, c.log, &composite, "repository.clear", 25*time.Second, func(stepCtx context.Context) error {
		repo := c.repo.Load()
		if repo == nil {
			return nil
		}
		return repo.Clear(stepCtx)
	})

	// 4. Stop Config Watcher.
	runStep(ctx, c.log, &composite, "watcher.stop", 5*time.Second, func(stepCtx context.Context) error {
		c.watcher.Stop()
		return nil
	})

	// 5. Close every writer reachable from MasterServerList; replace with
	// the empty list.
	runStep(ctx, c.log, &composite, "writers.close", 10*time.Second, func(stepCtx context.Context) error {
		var errs []error
		for _, w := range c.list.AllWriters() {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.list.Replace(nil)
		return errors.Join(errs...)
	})

	// 6. Unregister observability hooks.
	runStep(ctx, c.log, &composite, "observability.unregister", 5*time.Second, func(stepCtx context.Context) error {
		if c.obs != nil {
			c.obs.UnregisterRepository(servers)
		}
		return nil
	})

	c.notify.Stop()
	c.state = StateStopped
	c.log.Info("lifecycle stopped")
	return composite.ErrOrNil()
}

// Reload implements §4.5: a full restart of the scheduled/pooled state,
// never an incremental diff.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrNotRunning
	}

	// 1. Delete every job currently held by the Scheduler.
	c.sched.UnscheduleAll()

	// 2. Unregister all observability hooks associated with the current pools.
	oldServers := c.list.Servers()
	if c.obs != nil {
		c.obs.UnregisterRepository(oldServers)
	}

	// 3. Clear the Executor Repository.
	if repo := c.repo.Load(); repo != nil {
		if err := repo.Clear(ctx); err != nil {
			c.log.Warn("reload: repository clear failed", logx.Err(err))
		}
	}

	// stopWriterAndClearMasterServerList: close old writers before the
	// rebuild, per §4.5 step 4 / §C.1.
	for _, w := range c.list.AllWriters() {
		if err := w.Close(); err != nil {
			c.log.Warn("reload: writer close failed", logx.Err(err))
		}
	}
	c.list.Replace(nil)

	// 4. Re-run the Starting substeps.
	if err := c.loadAndScheduleLocked(ctx); err != nil {
		return fmt.Errorf("lifecycle: reload: %w", err)
	}
	c.log.Info("lifecycle reloaded", logx.Int("servers", len(c.list.Servers())))
	return nil
}

// RunStandalone (§4.1, §C.5) runs the normal Start sequence, waits for
// grace (or ctx cancellation) to let jobs fire, then stops. It loads the
// servers from the configured process config and starts the Config
// Watcher exactly as Start does; it does not take a fixed server set and
// does not bypass the watcher. A grace <= 0 falls back to
// cfg.ShutdownGraceSeconds, then to 10s.
func (c *Controller) RunStandalone(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		grace = time.Duration(c.cfg.ShutdownGraceSeconds) * time.Second
	}
	if grace <= 0 {
		grace = 10 * time.Second
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(grace):
	case <-ctx.Done():
	}
	return c.Stop(context.Background())
}

// onReload is the Config Watcher's reloadFn. A reload failure is fatal
// (§4.5, §7): it is handed to onFatal rather than swallowed.
func (c *Controller) onReload(ctx context.Context) {
	if err := c.Reload(ctx); err != nil {
		c.log.Error("reload failed; treating as fatal", logx.Err(err))
		if c.onFatal != nil {
			c.onFatal(err)
		}
	}
}

// onTick is the Scheduler's callback: one Server Job tick.
func (c *Controller) onTick(ctx context.Context, server *model.Server) {
	repo := c.repo.Load()
	if repo == nil {
		return
	}
	entry, ok := repo.For(server.Key())
	if !ok {
		return
	}
	c.runner.Run(ctx, entry)
}

// loadAndScheduleLocked implements §4.1 steps 3-6 (also reused by Reload's
// step 4). Caller must hold c.mu.
func (c *Controller) loadAndScheduleLocked(ctx context.Context) error {
	servers, err := parser.ParseServers(c.cfg.ProcessConfigDirOrFile, c.cfg.ContinueOnJSONError, c.log)
	if err != nil {
		return err
	}

	repo := repository.New(c.cfg.Executor, c.log)
	if err := repo.Build(ctx, servers); err != nil {
		return err
	}

	if c.obs != nil {
		if err := c.obs.RegisterRepository(repo, servers); err != nil {
			_ = repo.Clear(ctx)
			return err
		}
	}

	started := make([]model.OutputWriter, 0)
	seen := make(map[model.OutputWriter]bool)
	rollback := func() {
		for _, w := range started {
			_ = w.Close()
		}
		if c.obs != nil {
			c.obs.UnregisterRepository(servers)
		}
		_ = repo.Clear(ctx)
	}

	startOnce := func(w model.OutputWriter) error {
		if seen[w] {
			return nil
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		seen[w] = true
		started = append(started, w)
		return nil
	}

	for _, s := range servers {
		for _, w := range s.OutputWriters {
			if err := startOnce(w); err != nil {
				rollback()
				return fmt.Errorf("start writer for %s: %w", s.Key(), err)
			}
		}
		for _, q := range s.Queries {
			for _, w := range q.OutputWriters {
				if err := startOnce(w); err != nil {
					rollback()
					return fmt.Errorf("start writer for %s/%s: %w", s.Key(), q.ObjectName, err)
				}
			}
			for _, w := range allWriters(s, q) {
				if err := w.ValidateSetup(ctx, s, q); err != nil {
					rollback()
					return fmt.Errorf("validate %s/%s/%s: %w", s.Key(), q.ObjectName, w.Name(), err)
				}
			}
		}
	}

	globalPeriod := time.Duration(c.cfg.RunPeriodSeconds) * time.Second
	for _, s := range servers {
		if _, err := c.sched.Schedule(s, globalPeriod); err != nil {
			rollback()
			return fmt.Errorf("schedule %s: %w", s.Key(), err)
		}
	}

	c.list.Replace(servers)
	c.repo.Store(repo)
	return nil
}

func allWriters(s *model.Server, q *model.Query) []model.OutputWriter {
	out := make([]model.OutputWriter, 0, len(s.OutputWriters)+len(q.OutputWriters))
	out = append(out, s.OutputWriters...)
	out = append(out, q.OutputWriters...)
	return out
}
