package model

// Query is a named attribute-extraction request addressed to a Server: an
// object-name pattern, the attributes to read, optional key tags used to
// shape the resulting Result batch, and the writers that receive this
// query's results (in addition to the owning Server's writers).
type Query struct {
	ObjectName string
	Attributes []string
	KeyTags    map[string]string

	OutputWriters []OutputWriter
}

// Result is one attribute reading produced by a single Query execution.
type Result struct {
	ObjectName string
	Attribute  string
	Value      any
	KeyTags    map[string]string
}
