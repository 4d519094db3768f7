package config

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "jmxpoller/pkg/logx"
)

// Watcher implements the Config Watcher (§4.4): it watches either a single
// process-config file or a directory of them, filters events through
// IsProcessConfigFile, and debounces a burst of filesystem events into a
// single ScheduleReload call.
//
// Filesystem events are inherently bursty (editors write-then-rename,
// deployment tools copy several files in a row), so every observed event
// first waits 1s for partial writes to settle, then calls ScheduleReload,
// which itself coalesces repeated calls onto one pending timer that fires
// 1s after the *last* call. Events less than ~1s apart are therefore
// coalesced, and the reload fires about 2s after the last event of the
// burst (P7).
type Watcher struct {
	root   string // directory actually watched
	file   string // basename to match in file-mode; "" in dir-mode
	dirMode bool

	log     logx.Logger
	onEvent func() // not set or read; filtered events go through afterSettleDelay

	// reloadFn is invoked by the single-threaded debounce timer. It is the
	// only thing this package calls into the Lifecycle Controller for.
	reloadFn func(ctx context.Context)

	mu    sync.Mutex
	timer *time.Timer

	wg   sync.WaitGroup
	stop chan struct{}
}

// New builds a Watcher for path (file or directory). reloadFn is called
// from the dedicated single-threaded debounce timer — never concurrently —
// matching §4.4/§9's "keep the reload executor strictly single-threaded"
// guidance.
func New(path string, reloadFn func(ctx context.Context), log logx.Logger) (*Watcher, error) {
	info, err := os.Stat(path)
	dirMode := true
	file := ""
	root := path
	if err == nil && !info.IsDir() {
		dirMode = false
		root = filepath.Dir(path)
		file = filepath.Base(path)
	} else if err != nil {
		// Nonexistent path: deletions must stay observable, so we still
		// need to watch *something*. If the leaf has a config-ish
		// extension, treat it as a file-mode target and watch its parent
		// directory; otherwise treat it as a directory that does not exist
		// yet and watch the path itself (run retries adding the watch with
		// backoff until that succeeds).
		root = filepath.Dir(path)
		file = filepath.Base(path)
		if isConfigExt(file) {
			dirMode = false
		} else {
			dirMode = true
			root = path
			file = ""
		}
	}

	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{root: root, file: file, dirMode: dirMode, log: log, reloadFn: reloadFn, stop: make(chan struct{})}, nil
}

// IsProcessConfigFile reports whether name passes the dir-mode filter
// (P6): it must not start with "." and must end in .json/.yml/.yaml. The
// path argument is checked for existence only when it exists and is not a
// regular file (directories and sockets etc. are rejected); a nonexistent
// path passes, so deletions remain observable.
func IsProcessConfigFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !isConfigExt(name) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		// Nonexistent (deleted) — allowed through.
		return true
	}
	return info.Mode().IsRegular()
}

func isConfigExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".yml" || ext == ".yaml"
}

// Start runs the watch loop in a background goroutine and returns
// immediately. Call Stop to shut it down.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop blocks until the watch loop and any pending debounce timer have
// exited. Safe to call once.
func (w *Watcher) Stop() {
	close(w.stop)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("config watch init failed", logx.Err(err), logx.String("root", w.root))
			if !w.sleepBackoff(ctx, &backoff, rng, restartBackoffMax) {
				return
			}
			continue
		}
		if err := fw.Add(w.root); err != nil {
			_ = fw.Close()
			w.log.Warn("config watch add failed", logx.Err(err), logx.String("root", w.root))
			if !w.sleepBackoff(ctx, &backoff, rng, restartBackoffMax) {
				return
			}
			continue
		}

		backoff = restartBackoffBase
		w.log.Debug("config watcher started", logx.String("root", w.root), logx.Bool("dir_mode", w.dirMode))

		broken := w.drain(ctx, fw)
		_ = fw.Close()
		if ctx.Err() != nil {
			return
		}
		select {
		case <-w.stop:
			return
		default:
		}
		if !broken {
			continue
		}
		if !w.sleepBackoff(ctx, &backoff, rng, restartBackoffMax) {
			return
		}
	}
}

func (w *Watcher) drain(ctx context.Context, fw *fsnotify.Watcher) (broken bool) {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-w.stop:
			return false
		case ev, ok := <-fw.Events:
			if !ok {
				return true
			}
			if w.accepts(ev.Name) {
				w.afterSettleDelay(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return true
			}
			if err == nil {
				continue
			}
			w.log.Warn("config watch error", logx.Err(err), logx.String("root", w.root))
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				// May have missed events; reload once to be safe.
				w.afterSettleDelay(ctx)
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "closed") {
				return true
			}
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	if !w.dirMode {
		return strings.EqualFold(filepath.Base(path), w.file)
	}
	return IsProcessConfigFile(path)
}

// afterSettleDelay implements the "wait 1s before any action" step (§4.4
// step 2) as a best-effort, cancelable sleep, then calls ScheduleReload.
func (w *Watcher) afterSettleDelay(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-time.After(time.Second):
		}
		w.ScheduleReload(ctx)
	}()
}

// ScheduleReload debounces multiple rapid calls into a single reload: any
// pending timer is canceled and replaced by one firing 1s later, so the
// net effect is "reload 1s after the last call"; counting the settle delay
// in afterSettleDelay, that is about 2s after the last filesystem event in
// the burst (P7).
func (w *Watcher) ScheduleReload(ctx context.Context) {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Second, func() {
		select {
		case <-w.stop:
			return
		default:
		}
		w.reloadFn(ctx)
	})
	w.mu.Unlock()
}

func (w *Watcher) sleepBackoff(ctx context.Context, backoff *time.Duration, rng *rand.Rand, max time.Duration) bool {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < max {
		*backoff *= 2
		if *backoff > max {
			*backoff = max
		}
	}
	select {
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	case <-time.After(wait):
		return true
	}
}
