package lifecycle

import (
	"context"
	"fmt"
	"time"

	logx "jmxpoller/pkg/logx"
)

// runStep executes fn with a deadline derived from (but never exceeding)
// ctx's own deadline, recovers panics into an error, and logs begin/end,
// appending any failure to composite instead of propagating it — grounded
// on the teacher's shutdown step() closure (internal/app/app.go, now
// removed; see DESIGN.md).
func runStep(ctx context.Context, log logx.Logger, composite *LifecycleError, name string, max time.Duration, fn func(context.Context) error) {
	stepCtx := ctx
	var cancel context.CancelFunc
	if max > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	start := time.Now()
	log.Debug("lifecycle step starting", logx.String("step", name))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(stepCtx)
	}()

	dur := time.Since(start)
	if err != nil {
		log.Warn("lifecycle step failed", logx.String("step", name), logx.Err(err), logx.Duration("duration", dur))
		composite.add(name, err)
		return
	}
	log.Debug("lifecycle step finished", logx.String("step", name), logx.Duration("duration", dur))
}
