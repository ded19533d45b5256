package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statusdat"

// Metrics holds all Prometheus metrics of a reader process
type Metrics struct {
	// Parse metrics
	ParsesTotal      *prometheus.CounterVec
	ParseDuration    *prometheus.HistogramVec
	ParsedLines      *prometheus.CounterVec
	StatusBlocks     *prometheus.CounterVec
	DroppedRefsTotal *prometheus.CounterVec

	// Graph metrics
	GraphRecords    *prometheus.GaugeVec
	SnapshotAgeSecs *prometheus.GaugeVec
	ReloadsSkipped  *prometheus.CounterVec

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     prometheus.Histogram

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheEntriesTotal   prometheus.Gauge

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ParsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "parses_total",
			Help:      "Total number of parsed files by backend, file kind and result",
		}, []string{"backend", "file", "result"}),
		ParseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "parse_duration_seconds",
			Help:      "Histogram of parse durations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to 8s
		}, []string{"backend", "file"}),
		ParsedLines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "lines_total",
			Help:      "Total number of lines consumed",
		}, []string{"backend", "file"}),
		StatusBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "status_blocks_total",
			Help:      "Total number of runtime state blocks by outcome",
		}, []string{"backend", "outcome"}),
		DroppedRefsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "dropped_references_total",
			Help:      "Total number of references that never resolved",
		}, []string{"backend"}),

		GraphRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "records",
			Help:      "Number of records in the published snapshot by type",
		}, []string{"backend", "type"}),
		SnapshotAgeSecs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the published snapshot",
		}, []string{"backend"}),
		ReloadsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "reloads_skipped_total",
			Help:      "Reloads served from the current snapshot by reason",
		}, []string{"backend", "reason"}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "queries_total",
			Help:      "Total number of queries by target and result",
		}, []string{"target", "result"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Histogram of query durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		QueryRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "rows",
			Help:      "Histogram of result sizes",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of snapshot cache hits",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of snapshot cache misses",
		}),
		CacheEvictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of snapshot cache evictions",
		}),
		CacheEntriesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries_total",
			Help:      "Current number of cached object graphs",
		}),

		MemoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "memory_usage_bytes",
			Help:      "Current heap usage in bytes",
		}),
		GoroutinesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "goroutines_total",
			Help:      "Current number of goroutines",
		}),
	}
}

// RecordParse records a parse of one input file
func (m *Metrics) RecordParse(backend, file, result string, duration float64, lines int) {
	m.ParsesTotal.WithLabelValues(backend, file, result).Inc()
	m.ParseDuration.WithLabelValues(backend, file).Observe(duration)
	m.ParsedLines.WithLabelValues(backend, file).Add(float64(lines))
}

// RecordStatusBlocks records attached and skipped runtime state blocks
func (m *Metrics) RecordStatusBlocks(backend string, attached, skipped int) {
	m.StatusBlocks.WithLabelValues(backend, "attached").Add(float64(attached))
	m.StatusBlocks.WithLabelValues(backend, "skipped").Add(float64(skipped))
}

// RecordDroppedReferences records references dropped by the deferred pass
func (m *Metrics) RecordDroppedReferences(backend string, n int) {
	m.DroppedRefsTotal.WithLabelValues(backend).Add(float64(n))
}

// UpdateGraph publishes the record counts of a snapshot
func (m *Metrics) UpdateGraph(backend string, counts map[string]int) {
	for typeName, n := range counts {
		m.GraphRecords.WithLabelValues(backend, typeName).Set(float64(n))
	}
}

// UpdateSnapshotAge sets the age of the published snapshot
func (m *Metrics) UpdateSnapshotAge(backend string, seconds float64) {
	m.SnapshotAgeSecs.WithLabelValues(backend).Set(seconds)
}

// RecordReloadSkipped records a reload that kept the current snapshot
func (m *Metrics) RecordReloadSkipped(backend, reason string) {
	m.ReloadsSkipped.WithLabelValues(backend, reason).Inc()
}

// RecordQuery records a query execution
func (m *Metrics) RecordQuery(target, result string, duration float64, rows int) {
	m.QueriesTotal.WithLabelValues(target, result).Inc()
	m.QueryDuration.WithLabelValues(target).Observe(duration)
	m.QueryRows.Observe(float64(rows))
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction records a cache eviction
func (m *Metrics) RecordCacheEviction() {
	m.CacheEvictionsTotal.Inc()
}

// UpdateCacheSize updates the cache entry gauge
func (m *Metrics) UpdateCacheSize(entries int) {
	m.CacheEntriesTotal.Set(float64(entries))
}

// UpdateSystemStats updates process level statistics
func (m *Metrics) UpdateSystemStats(memoryUsage uint64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryUsage))
	m.GoroutinesTotal.Set(float64(goroutines))
}
