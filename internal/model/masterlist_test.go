package model

import (
	"context"
	"testing"
)

func TestNewMasterServerListStartsEmpty(t *testing.T) {
	l := NewMasterServerList()
	if got := l.Servers(); len(got) != 0 {
		t.Fatalf("Servers() = %v, want empty", got)
	}
}

func TestReplaceSwapsServers(t *testing.T) {
	l := NewMasterServerList()
	s1 := &Server{Host: "db1", Port: 9010}
	l.Replace([]*Server{s1})
	if got := l.Servers(); len(got) != 1 || got[0] != s1 {
		t.Fatalf("Servers() after Replace = %v, want [s1]", got)
	}

	l.Replace(nil)
	if got := l.Servers(); len(got) != 0 {
		t.Fatalf("Servers() after Replace(nil) = %v, want empty", got)
	}
}

func TestAllWritersCollectsServerAndQueryWriters(t *testing.T) {
	serverWriter := &fakeOutputWriter{name: "server"}
	queryWriter := &fakeOutputWriter{name: "query"}

	s := &Server{
		Host:          "db1",
		Port:          9010,
		OutputWriters: []OutputWriter{serverWriter},
		Queries: []*Query{
			{ObjectName: "x", OutputWriters: []OutputWriter{queryWriter}},
		},
	}
	l := NewMasterServerList()
	l.Replace([]*Server{s})

	got := l.AllWriters()
	if len(got) != 2 {
		t.Fatalf("len(AllWriters()) = %d, want 2", len(got))
	}
}

// fakeOutputWriter is a minimal OutputWriter stand-in for list bookkeeping
// tests that never exercise its behavior.
type fakeOutputWriter struct{ name string }

func (w *fakeOutputWriter) Start(ctx context.Context) error { return nil }
func (w *fakeOutputWriter) ValidateSetup(ctx context.Context, s *Server, q *Query) error {
	return nil
}
func (w *fakeOutputWriter) Write(ctx context.Context, s *Server, q *Query, r []Result) error {
	return nil
}
func (w *fakeOutputWriter) Close() error { return nil }
func (w *fakeOutputWriter) Name() string { return w.name }
