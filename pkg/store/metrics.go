package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// metrics holds the engine collectors.
type metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	commitsTotal   *prometheus.CounterVec
	commitDuration prometheus.Histogram

	liveRecords     prometheus.Gauge
	pagesTotal      prometheus.Gauge
	volumeSizeBytes prometheus.Gauge
	headVersion     prometheus.Gauge

	shardContended *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, storeID string) *metrics {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"store": storeID}, reg))
	if reg == nil {
		factory = promauto.With(nil)
	}

	return &metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagestore_operations_total",
				Help: "Total number of record operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagestore_operation_duration_seconds",
				Help:    "Record operation duration in seconds",
				Buckets: []float64{.000001, .00001, .0001, .001, .01, .1, 1},
			},
			[]string{"operation"},
		),

		commitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagestore_commits_total",
				Help: "Total number of commits by outcome",
			},
			[]string{"status"},
		),

		commitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagestore_commit_duration_seconds",
				Help:    "Commit duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		liveRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagestore_live_records",
				Help: "Number of live records",
			},
		),

		pagesTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagestore_pages",
				Help: "Number of pages addressable in the volume",
			},
		),

		volumeSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagestore_volume_size_bytes",
				Help: "Size of the backing volume in bytes",
			},
		),

		headVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagestore_head_version",
				Help: "Version of the durable head",
			},
		),

		shardContended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagestore_shard_contended_total",
				Help: "Shard selections that found the preferred shard locked",
			},
			[]string{"shard"},
		),
	}
}

// recordOperation records the outcome and latency of one operation.
func (m *metrics) recordOperation(op string, start time.Time, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.operationsTotal.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) recordCommit(start time.Time, status string) {
	m.commitsTotal.WithLabelValues(status).Inc()
	if status != "noop" {
		m.commitDuration.Observe(time.Since(start).Seconds())
	}
}
