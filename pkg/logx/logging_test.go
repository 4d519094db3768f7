package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServiceWritesToFileWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jmxpoller.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("hello", String("k", "v"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log file content = %q, want it to contain %q", data, "hello")
	}
}

func TestServiceRotatesFileOnceSizeLimitExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jmxpoller.log")

	svc, log := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: path, MaxSizeBytes: 1, MaxBackups: 2},
	})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("first line long enough to exceed the tiny size limit")
	log.Info("second line also long enough to force another rotation")

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected a rotated backup at %s.1: %v", path, err)
	}
}

func TestServiceApplyChangesLevelAtRuntime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jmxpoller.log")

	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("should not appear at error level")
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("should appear at info level")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "should not appear") {
		t.Fatalf("log contains a message that should have been filtered by level: %q", data)
	}
	if !strings.Contains(string(data), "should appear at info level") {
		t.Fatalf("log missing expected post-Apply message: %q", data)
	}
}
