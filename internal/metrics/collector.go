package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CollectorMetrics contains the poll loop's metrics.
type CollectorMetrics struct {
	PollsTotal        *prometheus.CounterVec
	ReadErrors        *prometheus.CounterVec
	ReadRetries       prometheus.Counter
	RecordsWritten    prometheus.Counter
	WriteDuration     prometheus.Histogram
	PollDuration      prometheus.Histogram
	LastPollTimestamp prometheus.Gauge
	TopicsRegistered  prometheus.Gauge
}

// NewCollectorMetrics creates the collector metrics and registers them with
// reg. A nil reg leaves them unregistered.
func NewCollectorMetrics(namespace string, reg prometheus.Registerer) *CollectorMetrics {
	m := &CollectorMetrics{
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "polls_total",
				Help:      "Total number of panel polls",
			},
			[]string{"status"}, // status: success, partial, error
		),
		ReadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "read_errors_total",
				Help:      "Metric reads that failed after retries",
			},
			[]string{"kind"}, // kind: transport, decode
		),
		ReadRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "read_retries_total",
				Help:      "Register reads repeated after a transport error",
			},
		),
		RecordsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "records_written_total",
				Help:      "Data records written to the store",
			},
		),
		WriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "write_duration_seconds",
				Help:      "Duration of store writes",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "poll_duration_seconds",
				Help:      "Duration of a full panel poll including the write",
				Buckets:   prometheus.DefBuckets,
			},
		),
		LastPollTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "last_poll_timestamp_seconds",
				Help:      "Unix time of the last completed poll",
			},
		),
		TopicsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "topics",
				Help:      "Topics ensured at startup",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.PollsTotal,
			m.ReadErrors,
			m.ReadRetries,
			m.RecordsWritten,
			m.WriteDuration,
			m.PollDuration,
			m.LastPollTimestamp,
			m.TopicsRegistered,
		)
	}
	return m
}
