package writer

import (
	"path/filepath"
	"testing"

	logx "jmxpoller/pkg/logx"
)

func TestBuildDispatchesByType(t *testing.T) {
	fileCasePath := filepath.Join(t.TempDir(), "out.jsonl")
	jsonlCasePath := filepath.Join(t.TempDir(), "out.jsonl")

	cases := []struct {
		name     string
		spec     Spec
		wantName string
		wantErr  bool
	}{
		{name: "default is log", spec: Spec{}, wantName: "log:log"},
		{name: "explicit console", spec: Spec{Type: "console"}, wantName: "log:log"},
		{name: "file", spec: Spec{Type: "file", Path: fileCasePath}, wantName: "file:" + fileCasePath},
		{name: "jsonl alias", spec: Spec{Type: "jsonl", Path: jsonlCasePath}, wantName: "file:" + jsonlCasePath},
		{name: "unknown type", spec: Spec{Type: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Build(tt.spec, logx.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if w.Name() != tt.wantName {
				t.Fatalf("Name() = %q, want %q", w.Name(), tt.wantName)
			}
		})
	}
}

func TestBuildFileRequiresPath(t *testing.T) {
	if _, err := Build(Spec{Type: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected an error for a file writer spec with no path")
	}
}
