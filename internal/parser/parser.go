// Package parser is the default configuration parser: it turns the files
// under a process-config directory (or a single file) into the list<Server>
// the engine schedules. spec.md §1 treats this as an out-of-core,
// swappable collaborator reachable only through ParseServers; this package
// is the concrete default implementation.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"jmxpoller/internal/config"
	"jmxpoller/internal/model"
	"jmxpoller/internal/writer"
	logx "jmxpoller/pkg/logx"
)

// ParseServers discovers every eligible config file under root (root itself
// if it is a file) and decodes each into Server records. When
// continueOnError is true, a malformed file is skipped and logged (§7
// "configuration errors"); otherwise the first error aborts the whole call.
func ParseServers(root string, continueOnError bool, log logx.Logger) ([]*model.Server, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	files, err := discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}

	var servers []*model.Server
	for _, f := range files {
		parsed, err := parseFile(f, log)
		if err != nil {
			if continueOnError {
				log.Warn("skipping malformed config file", logx.String("file", f), logx.Err(err))
				continue
			}
			return nil, fmt.Errorf("parser: %s: %w", f, err)
		}
		servers = append(servers, parsed...)
	}
	return servers, nil
}

func discoverFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if config.IsProcessConfigFile(path) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func parseFile(path string, log logx.Logger) ([]*model.Server, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, _, err := config.CoerceToJSON(path, raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var fs fileSchema
	if err := dec.Decode(&fs); err != nil {
		return nil, err
	}

	servers := make([]*model.Server, 0, len(fs.Servers))
	for _, ss := range fs.Servers {
		s, err := buildServer(ss, log)
		if err != nil {
			return nil, fmt.Errorf("server %s:%d: %w", ss.Host, ss.Port, err)
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func buildServer(ss serverSchema, log logx.Logger) (*model.Server, error) {
	if ss.Host == "" || ss.Port == 0 {
		return nil, fmt.Errorf("host and port are required")
	}

	serverWriters, err := buildWriters(ss.OutputWriters, log)
	if err != nil {
		return nil, err
	}

	queries := make([]*model.Query, 0, len(ss.Queries))
	for _, qs := range ss.Queries {
		queryWriters, err := buildWriters(qs.OutputWriters, log)
		if err != nil {
			return nil, err
		}
		queries = append(queries, &model.Query{
			ObjectName:    qs.ObjectName,
			Attributes:    qs.Attributes,
			KeyTags:       qs.KeyTags,
			OutputWriters: queryWriters,
		})
	}

	return &model.Server{
		Host:             ss.Host,
		Port:             ss.Port,
		Alias:            ss.Alias,
		Username:         ss.Username,
		Password:         ss.Password,
		CronExpression:   ss.CronExpression,
		RunPeriodSeconds: ss.RunPeriodSeconds,
		Queries:          queries,
		OutputWriters:    serverWriters,
	}, nil
}

func buildWriters(specs []writer.Spec, log logx.Logger) ([]model.OutputWriter, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]model.OutputWriter, 0, len(specs))
	for _, spec := range specs {
		w, err := writer.Build(spec, log)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
