// Package observability is the Go analogue of the management-bean registry
// spec.md §6 names ("registration of a management bean for the agent
// process itself and one per managed pool, named uniquely per pool ...
// unregistration must be exact inverse of registration"). It wraps a
// private prometheus.Registry rather than a platform MBean server, but
// preserves the same register/unregister discipline.
package observability

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jmxpoller/internal/model"
	"jmxpoller/internal/poll/pool"
	"jmxpoller/internal/poll/repository"
)

// Registry owns a private Prometheus registry plus the bookkeeping needed
// to unregister exactly what was registered.
type Registry struct {
	reg *prometheus.Registry

	mu         sync.Mutex
	collectors map[string]*poolCollector
}

func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry(), collectors: make(map[string]*poolCollector)}
	r.reg.MustRegister(prometheus.NewGoCollector())
	r.reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return r
}

// Handler exposes the registry over HTTP in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RegisterPool registers one collector named name, backed by snap. name
// must be unique (e.g. "<host>:<port>.query").
func (r *Registry) RegisterPool(name string, snap func() pool.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collectors[name]; exists {
		return fmt.Errorf("observability: pool %q already registered", name)
	}
	c := newPoolCollector(name, snap)
	if err := r.reg.Register(c); err != nil {
		return fmt.Errorf("observability: register %q: %w", name, err)
	}
	r.collectors[name] = c
	return nil
}

// UnregisterPool removes a previously registered pool collector. A no-op if
// the name was never registered.
func (r *Registry) UnregisterPool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collectors[name]
	if !ok {
		return
	}
	r.reg.Unregister(c)
	delete(r.collectors, name)
}

// RegisterRepository registers the query/result pool collectors for every
// server currently in repo (§4.1 step 5).
func (r *Registry) RegisterRepository(repo *repository.Repository, servers []*model.Server) error {
	for _, s := range servers {
		key := s.Key()
		entry, ok := repo.For(key)
		if !ok {
			continue
		}
		if err := r.RegisterPool(key+".query", entry.QueryPool.Snapshot); err != nil {
			return err
		}
		if err := r.RegisterPool(key+".result", entry.ResultPool.Snapshot); err != nil {
			return err
		}
	}
	return nil
}

// UnregisterRepository is the exact inverse of RegisterRepository (§4.5
// step 2, §C.7).
func (r *Registry) UnregisterRepository(servers []*model.Server) {
	for _, s := range servers {
		key := s.Key()
		r.UnregisterPool(key + ".query")
		r.UnregisterPool(key + ".result")
	}
}

// Count reports how many pool collectors are currently registered. Used by
// tests asserting the exact-inverse property.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.collectors)
}
