package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"jmxpoller/internal/poll/pool"
)

// poolCollector is the Go analogue of jmxtrans's per-pool management bean:
// one Prometheus collector per query/result pool, sampling a live
// pool.Snapshot on every scrape rather than tracking its own state.
type poolCollector struct {
	name string
	snap func() pool.Snapshot

	queueLen    *prometheus.Desc
	queueCap    *prometheus.Desc
	activeLimit *prometheus.Desc
	activeMax   *prometheus.Desc
	inFlight    *prometheus.Desc
	waiting     *prometheus.Desc
	dropped     *prometheus.Desc
	droppedFull *prometheus.Desc
	droppedOld  *prometheus.Desc
	circuitOpen *prometheus.Desc
}

func newPoolCollector(name string, snap func() pool.Snapshot) *poolCollector {
	labels := []string{"pool"}
	return &poolCollector{
		name:        name,
		snap:        snap,
		queueLen:    prometheus.NewDesc("jmxpoller_pool_queue_length", "Current queue depth.", labels, nil),
		queueCap:    prometheus.NewDesc("jmxpoller_pool_queue_capacity", "Configured queue capacity.", labels, nil),
		activeLimit: prometheus.NewDesc("jmxpoller_pool_active_limit", "Current autoscaled concurrency limit.", labels, nil),
		activeMax:   prometheus.NewDesc("jmxpoller_pool_active_max", "Configured maximum concurrency.", labels, nil),
		inFlight:    prometheus.NewDesc("jmxpoller_pool_in_flight", "Tasks currently executing.", labels, nil),
		waiting:     prometheus.NewDesc("jmxpoller_pool_waiting_for_permit", "Tasks dequeued but waiting on a concurrency permit.", labels, nil),
		dropped:     prometheus.NewDesc("jmxpoller_pool_dropped_total", "Tasks dropped (any reason) since start.", labels, nil),
		droppedFull: prometheus.NewDesc("jmxpoller_pool_dropped_queue_full_total", "Tasks dropped because the queue was full.", labels, nil),
		droppedOld:  prometheus.NewDesc("jmxpoller_pool_dropped_stale_total", "Tasks dropped for exceeding max queue delay.", labels, nil),
		circuitOpen: prometheus.NewDesc("jmxpoller_pool_circuit_open", "Number of open circuit-breaker keys.", labels, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueLen
	ch <- c.queueCap
	ch <- c.activeLimit
	ch <- c.activeMax
	ch <- c.inFlight
	ch <- c.waiting
	ch <- c.dropped
	ch <- c.droppedFull
	ch <- c.droppedOld
	ch <- c.circuitOpen
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snap()
	ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(s.QueueLen), c.name)
	ch <- prometheus.MustNewConstMetric(c.queueCap, prometheus.GaugeValue, float64(s.QueueCap), c.name)
	ch <- prometheus.MustNewConstMetric(c.activeLimit, prometheus.GaugeValue, float64(s.ActiveLimit), c.name)
	ch <- prometheus.MustNewConstMetric(c.activeMax, prometheus.GaugeValue, float64(s.ActiveMax), c.name)
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight), c.name)
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(s.WaitingForPermit), c.name)
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped), c.name)
	ch <- prometheus.MustNewConstMetric(c.droppedFull, prometheus.CounterValue, float64(s.DroppedQueueFull), c.name)
	ch <- prometheus.MustNewConstMetric(c.droppedOld, prometheus.CounterValue, float64(s.DroppedStale), c.name)
	ch <- prometheus.MustNewConstMetric(c.circuitOpen, prometheus.GaugeValue, float64(s.CircuitOpen), c.name)
}
