// Command jmxpoller is the CLI entrypoint (§6 "CLI surface"): it resolves
// flags into a configuration record and hands off to the Lifecycle
// Controller, exiting 0 on a clean stop or --help, and 1 on any uncaught
// error (§6 "Process exit", §7).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jmxpoller/internal/config"
	"jmxpoller/internal/lifecycle"
	"jmxpoller/internal/mgmtclient"
	"jmxpoller/internal/observability"
	"jmxpoller/internal/sysnotify"
	logx "jmxpoller/pkg/logx"
)

type cliFlags struct {
	processConfigDirOrFile string
	continueOnJSONError    bool
	runPeriod              int
	additionalJars         []string

	logLevel string
	logFile  string

	metricsEnabled bool
	metricsAddr    string
	systemdNotify  bool

	grace int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}
	root := &cobra.Command{
		Use:   "jmxpoller",
		Short: "Periodically polls managed Java processes and forwards samples to output writers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), flags)
		},
	}
	bindFlags(root, flags)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load the configured servers once, run for a grace period, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStandalone(cmd.Context(), flags)
		},
	}
	bindFlags(runCmd, flags)
	runCmd.Flags().IntVar(&flags.grace, "grace", 10, "seconds to let jobs run before stopping")
	root.AddCommand(runCmd)

	return root
}

func bindFlags(cmd *cobra.Command, f *cliFlags) {
	cmd.Flags().StringVar(&f.processConfigDirOrFile, "process-config", "", "path to a process config directory or file (required)")
	cmd.Flags().BoolVar(&f.continueOnJSONError, "continue-on-json-error", true, "skip malformed config files instead of failing the reload")
	cmd.Flags().IntVar(&f.runPeriod, "run-period", 60, "default poll period in seconds, used when a server sets neither a cron expression nor its own period")
	cmd.Flags().StringSliceVar(&f.additionalJars, "additional-jars", nil, "ignored by the core; extension hook for an external class-loading collaborator")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "optional log file path, rotated by size")
	cmd.Flags().BoolVar(&f.metricsEnabled, "metrics", true, "expose a Prometheus metrics endpoint")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "127.0.0.1:9404", "metrics listen address")
	cmd.Flags().BoolVar(&f.systemdNotify, "systemd-notify", false, "send READY=1/WATCHDOG=1 to systemd when run under a Type=notify unit")
}

func buildConfig(f *cliFlags) config.Config {
	return config.Config{
		ProcessConfigDirOrFile: f.processConfigDirOrFile,
		ContinueOnJSONError:    f.continueOnJSONError,
		RunPeriodSeconds:       f.runPeriod,
		Logging: config.LoggingConfig{
			Level:   f.logLevel,
			Console: true,
			File: config.LoggingFile{
				Enabled: f.logFile != "",
				Path:    f.logFile,
			},
		},
		Observability: config.ObservabilityConfig{
			MetricsEnabled: f.metricsEnabled,
			MetricsAddr:    f.metricsAddr,
			SystemdNotify:  f.systemdNotify,
		},
		Executor: config.ExecutorConfig{
			QueryPool:  config.PoolConfig{MaxWorkers: 8, QueueSize: 128},
			ResultPool: config.PoolConfig{MaxWorkers: 4, QueueSize: 256},
		},
	}
}

// setup wires the ambient stack (logging, observability, systemd notify)
// and the Lifecycle Controller. Callers must invoke the returned cleanup
// func once, even on error paths after it is returned.
func setup(f *cliFlags) (*lifecycle.Controller, func(), error) {
	if f.processConfigDirOrFile == "" {
		return nil, func() {}, fmt.Errorf("--process-config is required")
	}
	cfg := buildConfig(f)

	svc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	var obs *observability.Registry
	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		obs = observability.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", obs.Handler())
		metricsServer = &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server exited", logx.Err(err))
			}
		}()
	}

	notifier := sysnotify.New(cfg.Observability.SystemdNotify, log)
	client := mgmtclient.New()

	onFatal := func(err error) {
		log.Error("fatal error; exiting", logx.Err(err))
		os.Exit(1)
	}
	ctrl := lifecycle.New(cfg, client, log, obs, notifier, onFatal)

	cleanup := func() {
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
		_ = svc.Close()
	}
	return ctrl, cleanup, nil
}

// runWatch is the long-running path: start, then block until a signal or
// parent context cancellation fires the process-exit hook.
func runWatch(ctx context.Context, f *cliFlags) error {
	ctrl, cleanup, err := setup(f)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	hook := ctrl.ExitHook()
	select {
	case <-sigCh:
		hook.Fire()
	case <-ctx.Done():
		hook.Fire()
	}
	return nil
}

// runStandalone is the §C.5 one-shot path.
func runStandalone(ctx context.Context, f *cliFlags) error {
	ctrl, cleanup, err := setup(f)
	if err != nil {
		return err
	}
	defer cleanup()
	return ctrl.RunStandalone(ctx, time.Duration(f.grace)*time.Second)
}
