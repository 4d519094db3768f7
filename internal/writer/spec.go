// Package writer provides the concrete OutputWriter implementations
// (spec.md §1 names output writers as "thin sink adapters" out of core
// scope; these are the swappable defaults so the engine has somewhere real
// to send Results). Every writer satisfies model.OutputWriter's capability
// set {Start, ValidateSetup, Write, Close}.
package writer

import (
	"fmt"
	"strings"

	"jmxpoller/internal/model"
	logx "jmxpoller/pkg/logx"
)

// Spec is the on-disk declaration of one writer, decoded directly from a
// process config file by internal/parser.
type Spec struct {
	Type    string         `json:"type"`
	Path    string         `json:"path,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Build dispatches on spec.Type to construct a concrete OutputWriter.
// Unknown types are a parse-time error for the file that declares them;
// internal/parser.ParseServers then skips that file or fails the whole
// parse, depending on its continueOnError argument.
func Build(spec Spec, log logx.Logger) (model.OutputWriter, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "log", "console", "":
		return newLogWriter(spec, log), nil
	case "file", "jsonl":
		return newFileWriter(spec, log)
	case "sqlite", "sqlite3":
		return newSQLiteWriter(spec, log)
	default:
		return nil, fmt.Errorf("writer: unknown type %q", spec.Type)
	}
}
