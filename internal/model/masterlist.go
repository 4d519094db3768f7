package model

import "sync/atomic"

// MasterServerList is the authoritative in-memory snapshot of active
// servers. It is replaced by reference on every reload so readers always
// observe a complete list, never a partial mutation (§5 shared-resource
// policy).
type MasterServerList struct {
	v atomic.Value // []*Server
}

// NewMasterServerList returns an empty list.
func NewMasterServerList() *MasterServerList {
	l := &MasterServerList{}
	l.v.Store([]*Server{})
	return l
}

// Servers returns the currently published server list. The returned slice
// must be treated as read-only by the caller.
func (l *MasterServerList) Servers() []*Server {
	if l == nil {
		return nil
	}
	v := l.v.Load()
	if v == nil {
		return nil
	}
	return v.([]*Server)
}

// Replace atomically swaps in a new server list.
func (l *MasterServerList) Replace(servers []*Server) {
	if servers == nil {
		servers = []*Server{}
	}
	l.v.Store(servers)
}

// AllWriters returns every OutputWriter reachable from the list: server-
// level writers plus every query-level writer, across all servers. Used by
// the lifecycle controller to close writers exhaustively.
func (l *MasterServerList) AllWriters() []OutputWriter {
	var out []OutputWriter
	for _, s := range l.Servers() {
		out = append(out, s.OutputWriters...)
		for _, q := range s.Queries {
			out = append(out, q.OutputWriters...)
		}
	}
	return out
}
