package model

import "context"

// OutputWriter is the capability set every sink adapter implements: started
// before first use, validated per (server, query) pair, written to once per
// completed query, and closed exactly once. Writers are shared between the
// lifecycle controller (start/close) and Server Job workers (write), so
// Write must be safe for concurrent use.
type OutputWriter interface {
	Start(ctx context.Context) error
	ValidateSetup(ctx context.Context, server *Server, query *Query) error
	Write(ctx context.Context, server *Server, query *Query, results []Result) error
	Close() error

	// Name identifies the writer instance in logs and observability labels.
	// It does not need to be unique across writers.
	Name() string
}
