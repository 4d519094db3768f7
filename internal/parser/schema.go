package parser

import "jmxpoller/internal/writer"

// fileSchema is the on-disk shape of one process config file: a list of
// servers, each with its queries and writers. spec.md §1 names the
// configuration parser an external collaborator whose only contract with
// the core is `parseServers(files, continueOnError) -> list<Server>`; this
// schema is the concrete, swappable default that fills that role.
type fileSchema struct {
	Servers []serverSchema `json:"servers"`
}

type serverSchema struct {
	Host             string         `json:"host"`
	Port             int            `json:"port"`
	Alias            string         `json:"alias,omitempty"`
	Username         string         `json:"username,omitempty"`
	Password         string         `json:"password,omitempty"`
	CronExpression   string         `json:"cron_expression,omitempty"`
	RunPeriodSeconds int            `json:"run_period_seconds,omitempty"`
	Queries          []querySchema  `json:"queries"`
	OutputWriters    []writer.Spec  `json:"output_writers,omitempty"`
}

type querySchema struct {
	ObjectName    string            `json:"object_name"`
	Attributes    []string          `json:"attributes,omitempty"`
	KeyTags       map[string]string `json:"key_tags,omitempty"`
	OutputWriters []writer.Spec     `json:"output_writers,omitempty"`
}
