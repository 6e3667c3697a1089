package storage

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of gauges/histograms the storage system publishes,
// named after this domain's nouns but structured after the teacher
// pack's worker-pool metrics (queue depth, flush duration, backlog
// size).
type Metrics struct {
	DirtySetSize   prometheus.Gauge
	DBQueueDepth   prometheus.Gauge
	RTPending      prometheus.Gauge
	FlushDuration  prometheus.Histogram
	FlushFailures  prometheus.Counter
}

// NewMetrics registers and returns the storage metric set against reg.
// A nil reg is replaced with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DirtySetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldserver",
			Subsystem: "storage",
			Name:      "dirty_set_size",
			Help:      "Number of player uids currently marked dirty.",
		}),
		DBQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldserver",
			Subsystem: "storage",
			Name:      "db_queue_depth",
			Help:      "Number of batch jobs currently queued for the durable-store worker.",
		}),
		RTPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldserver",
			Subsystem: "storage",
			Name:      "rt_write_pending",
			Help:      "Number of real-time writes queued but not yet flushed to cache.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fieldserver",
			Subsystem: "storage",
			Name:      "flush_duration_seconds",
			Help:      "Duration of each durable-store flush job.",
			Buckets:   prometheus.DefBuckets,
		}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldserver",
			Subsystem: "storage",
			Name:      "flush_failures_total",
			Help:      "Number of durable-store flush jobs that failed and were re-marked dirty.",
		}),
	}
	reg.MustRegister(m.DirtySetSize, m.DBQueueDepth, m.RTPending, m.FlushDuration, m.FlushFailures)
	return m
}
