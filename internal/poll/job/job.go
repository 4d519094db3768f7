// Package job implements the Server Job (§4.3): the unit of work fired by
// one scheduler tick. It owns no pools itself — it submits tasks into the
// query and result pools handed to it by the Executor Repository.
package job

import (
	"context"
	"fmt"
	"sync/atomic"

	"jmxpoller/internal/model"
	"jmxpoller/internal/poll/pool"
	"jmxpoller/internal/poll/repository"
	logx "jmxpoller/pkg/logx"
)

// Client is the management-protocol client (out of scope per spec.md §1):
// it performs one remote attribute fetch against a Server for one Query and
// returns the resulting Result batch.
type Client interface {
	Fetch(ctx context.Context, server *model.Server, query *model.Query) ([]model.Result, error)
}

var taskSeq uint64

func nextTaskID(prefix string) string {
	n := atomic.AddUint64(&taskSeq, 1)
	return fmt.Sprintf("%s-%d", prefix, n)
}

// Runner dispatches Server Job ticks. One Runner serves every Server; it is
// stateless beyond its Client and logger.
type Runner struct {
	client Client
	log    logx.Logger
}

func NewRunner(client Client, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{client: client, log: log}
}

// Run executes one tick for entry.Server: it submits one query task per
// Query to the query pool (step 1 of §4.3). Every query task is submitted
// before Run returns; nothing here blocks on I/O.
func (r *Runner) Run(ctx context.Context, entry *repository.Entry) {
	server := entry.Server
	for _, q := range server.Queries {
		query := q
		taskName := server.Key() + "/" + query.ObjectName
		t := pool.Task{
			ID:             nextTaskID(taskName),
			Name:           taskName,
			ConcurrencyKey: taskName,
			Run: func(taskCtx context.Context) error {
				return r.runQuery(taskCtx, entry, query)
			},
		}
		if err := entry.QueryPool.Submit(t); err != nil {
			r.log.Warn("query task dropped", logx.String("server", server.Key()), logx.String("query", query.ObjectName), logx.Err(err))
		}
	}
}

// runQuery performs the remote fetch (step 2) then submits a result task
// carrying the batch (step 3). Query/dispatch errors are logged, never
// propagated beyond this tick (§7).
func (r *Runner) runQuery(ctx context.Context, entry *repository.Entry, query *model.Query) error {
	results, err := r.client.Fetch(ctx, entry.Server, query)
	if err != nil {
		r.log.Error("query failed", logx.String("server", entry.Server.Key()), logx.String("query", query.ObjectName), logx.Err(err))
		return pool.NoRetry(err)
	}

	writers := mergeWriters(entry.Server.OutputWriters, query.OutputWriters)
	if len(writers) == 0 {
		return nil
	}

	resultTaskName := entry.Server.Key() + "/" + query.ObjectName + "/result"
	rt := pool.Task{
		ID:   nextTaskID(resultTaskName),
		Name: resultTaskName,
		Run: func(taskCtx context.Context) error {
			r.dispatchResults(taskCtx, entry.Server, query, writers, results)
			return nil
		},
	}
	if err := entry.ResultPool.Submit(rt); err != nil {
		r.log.Warn("result task dropped", logx.String("server", entry.Server.Key()), logx.String("query", query.ObjectName), logx.Err(err))
	}
	return nil
}

// dispatchResults is step 4: call write() on every writer in the union of
// server-level and query-level writers, swallowing per-writer failures so
// one broken sink doesn't starve the others.
func (r *Runner) dispatchResults(ctx context.Context, server *model.Server, query *model.Query, writers []model.OutputWriter, results []model.Result) {
	for _, w := range writers {
		if err := w.Write(ctx, server, query, results); err != nil {
			r.log.Error("writer failed", logx.String("writer", w.Name()), logx.String("server", server.Key()), logx.String("query", query.ObjectName), logx.Err(err))
		}
	}
}

func mergeWriters(serverWriters, queryWriters []model.OutputWriter) []model.OutputWriter {
	if len(serverWriters) == 0 {
		return queryWriters
	}
	if len(queryWriters) == 0 {
		return serverWriters
	}
	out := make([]model.OutputWriter, 0, len(serverWriters)+len(queryWriters))
	out = append(out, serverWriters...)
	out = append(out, queryWriters...)
	return out
}
