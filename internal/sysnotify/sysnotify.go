// Package sysnotify sends systemd readiness/watchdog notifications
// (spec.md §6 "Environment/signals" names only the process-exit hook, but
// SPEC_FULL §B wires github.com/coreos/go-systemd/v22's daemon subpackage
// here so a systemd Type=notify unit gets real READY=1/WATCHDOG=1 signals).
// A no-op when NOTIFY_SOCKET is unset, e.g. outside systemd.
package sysnotify

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jmxpoller/pkg/logx"
)

type Notifier struct {
	enabled bool
	log     logx.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{enabled: enabled, log: log}
}

// Ready sends READY=1, once, after startup completes (§4.1 step 6 having
// finished). A no-op if disabled or not running under systemd.
func (n *Notifier) Ready() {
	if !n.enabled {
		return
	}
	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		n.log.Warn("sd_notify ready failed", logx.Err(err))
		return
	}
	if ok {
		n.log.Debug("sd_notify: sent READY=1")
	}
}

// StartWatchdog begins sending WATCHDOG=1 at half the interval systemd's
// unit file requests (WatchdogSec=), if any. A no-op otherwise.
func (n *Notifier) StartWatchdog(ctx context.Context) {
	if !n.enabled {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	n.stop = make(chan struct{})
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-n.stop:
				return
			case <-t.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					n.log.Warn("sd_notify watchdog failed", logx.Err(err))
				}
			}
		}
	}()
}

// Stop sends STOPPING=1 and halts the watchdog loop.
func (n *Notifier) Stop() {
	if n.stop != nil {
		close(n.stop)
		n.wg.Wait()
		n.stop = nil
	}
	if !n.enabled {
		return
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
