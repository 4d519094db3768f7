package config

// Config is the agent's top-level configuration: the global polling
// defaults (§6 CLI surface: processConfigDirOrFile, continueOnJsonError,
// runPeriod) plus the ambient sections (logging, observability). The
// per-Server/Query/OutputWriter declarations themselves live in the
// process config directory/file parsed by the internal/parser package —
// keeping them out of this struct is what lets the Config Watcher reload
// them independently of the agent's own settings.
type Config struct {
	// ProcessConfigDirOrFile is either a directory of .json/.yml/.yaml
	// server-definition files, or a single such file.
	ProcessConfigDirOrFile string `json:"process_config_dir_or_file"`

	// ContinueOnJSONError governs parser error handling (§7): if true, a
	// malformed config file is skipped and logged; if false, the whole
	// reload/startup fails.
	ContinueOnJSONError bool `json:"continue_on_json_error"`

	// RunPeriodSeconds is the global default poll period used by any
	// Server that declares neither a cron expression nor its own
	// run_period_seconds override.
	RunPeriodSeconds int `json:"run_period_seconds"`

	// ShutdownGraceSeconds is the grace period Controller.RunStandalone
	// waits before stopping when its caller passes none (<= 0); 10s when
	// this is unset too (§4.1).
	ShutdownGraceSeconds int `json:"shutdown_grace_seconds,omitempty"`

	Logging       LoggingConfig       `json:"logging"`
	Observability ObservabilityConfig `json:"observability,omitempty"`
	Executor      ExecutorConfig      `json:"executor,omitempty"`
}

// ExecutorConfig sizes the bounded pools the Executor Repository creates
// per Server (§4.3). Both the query pool and the result pool use the same
// shape; they are sized independently so writer slowness cannot starve
// query execution.
type ExecutorConfig struct {
	QueryPool  PoolConfig `json:"query_pool,omitempty"`
	ResultPool PoolConfig `json:"result_pool,omitempty"`
}

type PoolConfig struct {
	CoreWorkers int `json:"core_workers,omitempty"`
	MaxWorkers  int `json:"max_workers,omitempty"`
	QueueSize   int `json:"queue_size,omitempty"`

	// DefaultTimeout bounds one task's execution when the task itself sets
	// none, as a Go duration string (e.g. "30s"). Empty uses the 30s
	// built-in default.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	// MaxQueueDelay drops a task that has waited longer than this in the
	// queue before a worker picks it up, as a Go duration string. Empty
	// disables stale-queue dropping.
	MaxQueueDelay string `json:"max_queue_delay,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled      bool   `json:"enabled"`
	Path         string `json:"path"`
	MaxSizeBytes int64  `json:"max_size_bytes,omitempty"`
	MaxBackups   int    `json:"max_backups,omitempty"`
}

// ObservabilityConfig controls the self-monitoring surface (§6): a
// Prometheus endpoint exposing process gauges and one collector per
// Executor Repository pool, plus systemd readiness/watchdog notification.
type ObservabilityConfig struct {
	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsAddr    string `json:"metrics_addr,omitempty"` // default "127.0.0.1:9404"

	// SystemdNotify sends READY=1 on startup and WATCHDOG=1 on the
	// interval systemd expects, when the process is run under a systemd
	// unit with Type=notify. A no-op otherwise (NOTIFY_SOCKET unset).
	SystemdNotify bool `json:"systemd_notify,omitempty"`
}
