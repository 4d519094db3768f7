// Package repository implements the Executor Repository (§3, §4.3): one
// query pool and one result pool per live Server, rebuilt wholesale on
// every reload.
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jmxpoller/internal/config"
	"jmxpoller/internal/model"
	"jmxpoller/internal/poll/pool"
	logx "jmxpoller/pkg/logx"
)

// Entry is the pair of pools owned by one Server, plus the Server itself so
// callers don't need a second lookup.
type Entry struct {
	Server     *model.Server
	QueryPool  *pool.Service
	ResultPool *pool.Service
}

// Repository is the map Server → (query pool, result pool). It corresponds
// 1-to-1 with MasterServerList whenever the Lifecycle Controller has
// finished a Build.
type Repository struct {
	cfg config.ExecutorConfig
	log logx.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

func New(cfg config.ExecutorConfig, log logx.Logger) *Repository {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Repository{cfg: cfg, log: log, entries: make(map[string]*Entry)}
}

// Build creates and starts one Entry per server. On any pool start failure
// it stops everything it already started and returns the error — callers
// are expected to treat Repository construction as all-or-nothing, per
// §4.1's "on any error during Starting, transition back to Stopped after
// best-effort release of partial resources".
func (r *Repository) Build(ctx context.Context, servers []*model.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qCfg, err := poolConfig(r.cfg.QueryPool, true, "executor.query_pool")
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	rCfg, err := poolConfig(r.cfg.ResultPool, true, "executor.result_pool")
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	entries := make(map[string]*Entry, len(servers))
	var started []*Entry
	for _, s := range servers {
		key := s.Key()
		qp := pool.New(key+".query", qCfg, r.log)
		rp := pool.New(key+".result", rCfg, r.log)
		if err := qp.Start(ctx); err != nil {
			r.stopAll(started)
			return fmt.Errorf("repository: start query pool for %s: %w", key, err)
		}
		started = append(started, &Entry{Server: s, QueryPool: qp})
		if err := rp.Start(ctx); err != nil {
			r.stopAll(started)
			return fmt.Errorf("repository: start result pool for %s: %w", key, err)
		}
		e := &Entry{Server: s, QueryPool: qp, ResultPool: rp}
		started[len(started)-1] = e
		entries[key] = e
	}
	r.entries = entries
	return nil
}

// Clear shuts down every pool (all query pools first, then all result
// pools) with a 10s ceiling each (§4.5 step 3, §5), then discards the map.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	list := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	r.stopAll(list)
	return nil
}

func (r *Repository) stopAll(entries []*Entry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.QueryPool != nil {
			stopWithCeiling(e.QueryPool, r.log)
		}
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.ResultPool != nil {
			stopWithCeiling(e.ResultPool, r.log)
		}
	}
}

func stopWithCeiling(p *pool.Service, log logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		log.Warn("pool shutdown exceeded ceiling", logx.String("pool", p.Name()), logx.Err(err))
	}
}

// For looks up the Entry for a server by its Key(). Safe for concurrent use
// with Build/Clear.
func (r *Repository) For(key string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// Snapshot returns a (query, result) pool.Snapshot pair per server, for
// observability.
func (r *Repository) Snapshot() map[string][2]pool.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][2]pool.Snapshot, len(r.entries))
	for key, e := range r.entries {
		var qs, rs pool.Snapshot
		if e.QueryPool != nil {
			qs = e.QueryPool.Snapshot()
		}
		if e.ResultPool != nil {
			rs = e.ResultPool.Snapshot()
		}
		out[key] = [2]pool.Snapshot{qs, rs}
	}
	return out
}

func poolConfig(c config.PoolConfig, enabled bool, path string) (pool.Config, error) {
	workers := c.MaxWorkers
	if workers < 1 {
		workers = c.CoreWorkers
	}
	if workers < 1 {
		workers = 4
	}
	queueSize := c.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}

	defaultTimeout, err := config.ParseDurationOrDefault(path+".default_timeout", c.DefaultTimeout, 30*time.Second)
	if err != nil {
		return pool.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField(path+".max_queue_delay", c.MaxQueueDelay)
	if err != nil {
		return pool.Config{}, err
	}

	return pool.Config{
		Enabled:             enabled,
		Workers:             workers,
		QueueSize:           queueSize,
		DefaultTimeout:      defaultTimeout,
		MaxQueueDelay:       maxQueueDelay,
		HistorySize:         32,
		RetryMax:            0,
		CircuitTripFailures: -1,
	}, nil
}
