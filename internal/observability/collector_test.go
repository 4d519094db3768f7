package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"jmxpoller/internal/poll/pool"
)

func TestPoolCollectorReportsSnapshotFields(t *testing.T) {
	snap := pool.Snapshot{
		QueueLen:         3,
		QueueCap:         8,
		ActiveLimit:      2,
		ActiveMax:        4,
		InFlight:         1,
		DroppedQueueFull: 5,
	}
	c := newPoolCollector("db1:9010.query", func() pool.Snapshot { return snap })

	want := `
# HELP jmxpoller_pool_queue_length Current queue depth.
# TYPE jmxpoller_pool_queue_length gauge
jmxpoller_pool_queue_length{pool="db1:9010.query"} 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "jmxpoller_pool_queue_length"); err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
}
