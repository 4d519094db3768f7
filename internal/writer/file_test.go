package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"jmxpoller/internal/model"
	logx "jmxpoller/pkg/logx"
)

func TestFileWriterAppendsOneRecordPerWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "results.jsonl")

	w, err := newFileWriter(Spec{Type: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("newFileWriter: %v", err)
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	server := &model.Server{Host: "db1", Port: 9010}
	query := &model.Query{ObjectName: "java.lang:type=Memory"}
	results := []model.Result{{ObjectName: query.ObjectName, Attribute: "HeapMemoryUsage", Value: 42.0}}

	if err := w.Write(ctx, server, query, results); err != nil {
		t.Fatalf("Write #1: %v", err)
	}
	if err := w.Write(ctx, server, query, results); err != nil {
		t.Fatalf("Write #2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var rec fileRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %d: %v", lines+1, err)
		}
		if rec.Server != server.Key() {
			t.Fatalf("line %d: Server = %q, want %q", lines+1, rec.Server, server.Key())
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("wrote %d lines, want 2", lines)
	}
}

func TestFileWriterRequiresPath(t *testing.T) {
	if _, err := newFileWriter(Spec{Type: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected an error for a file writer spec with no path")
	}
}

func TestFileWriterWriteBeforeStartFails(t *testing.T) {
	w, err := newFileWriter(Spec{Type: "file", Path: filepath.Join(t.TempDir(), "out.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("newFileWriter: %v", err)
	}
	server := &model.Server{Host: "db1", Port: 9010}
	query := &model.Query{ObjectName: "x"}
	if err := w.Write(context.Background(), server, query, nil); err == nil {
		t.Fatal("expected Write before Start to fail")
	}
}
