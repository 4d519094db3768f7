package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	logx "jmxpoller/pkg/logx"
)

func TestIsProcessConfigFileFiltersByExtensionAndDotfile(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		want bool
	}{
		{"servers.json", true},
		{"servers.yaml", true},
		{"servers.yml", true},
		{".servers.json", false},
		{"README.md", false},
		{"servers.JSON", true},
	}
	for _, c := range cases {
		path := filepath.Join(dir, c.name)
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", c.name, err)
		}
		if got := IsProcessConfigFile(path); got != c.want {
			t.Errorf("IsProcessConfigFile(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsProcessConfigFileAllowsDeletedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.json")
	if !IsProcessConfigFile(path) {
		t.Fatal("a nonexistent .json path must pass so deletions remain observable")
	}
}

func TestIsProcessConfigFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested.json")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if IsProcessConfigFile(sub) {
		t.Fatal("a directory named *.json must not pass")
	}
}

func TestScheduleReloadDebouncesBurstIntoOneCall(t *testing.T) {
	var calls int32
	dir := t.TempDir()
	w, err := New(dir, func(ctx context.Context) { atomic.AddInt32(&calls, 1) }, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.ScheduleReload(ctx)
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(1500 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want exactly 1 reload for the whole burst", got)
	}
}

func TestNewInFileModeWatchesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := New(path, func(ctx context.Context) {}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)

	if w.dirMode {
		t.Fatal("New(file) should select file mode, not directory mode")
	}
	if w.file != "servers.json" {
		t.Fatalf("w.file = %q, want servers.json", w.file)
	}
	if w.root != dir {
		t.Fatalf("w.root = %q, want %q", w.root, dir)
	}
}
