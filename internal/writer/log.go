package writer

import (
	"context"

	"jmxpoller/internal/model"
	logx "jmxpoller/pkg/logx"
)

// logWriter writes every Result as a structured log line. It is the
// zero-config default — adapted from the teacher's console sink idiom
// (pkg/logx), repurposed as a sink rather than a log destination.
type logWriter struct {
	log  logx.Logger
	name string
}

func newLogWriter(spec Spec, log logx.Logger) *logWriter {
	name := spec.Path
	if name == "" {
		name = "log"
	}
	return &logWriter{log: log, name: "log:" + name}
}

func (w *logWriter) Start(ctx context.Context) error { return nil }

func (w *logWriter) ValidateSetup(ctx context.Context, server *model.Server, query *model.Query) error {
	return nil
}

func (w *logWriter) Write(ctx context.Context, server *model.Server, query *model.Query, results []model.Result) error {
	for _, r := range results {
		w.log.Info("result",
			logx.String("server", server.Key()),
			logx.String("object_name", r.ObjectName),
			logx.String("attribute", r.Attribute),
			logx.Any("value", r.Value),
		)
	}
	return nil
}

func (w *logWriter) Close() error { return nil }

func (w *logWriter) Name() string { return w.name }
