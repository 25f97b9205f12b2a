package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Результат коммита для CommitsTotal.
const (
	CommitOK         = "ok"
	CommitFailed     = "failed"
	CommitSuperseded = "superseded"
)

var (
	RecordsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_records_consumed_total",
			Help: "Number of records polled from the broker",
		},
		[]string{"topic"},
	)
	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_records_processed_total",
			Help: "Number of records persisted successfully",
		},
		[]string{"topic", "strategy"},
	)
	RecordsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_records_failed_total",
			Help: "Number of records whose persistence failed",
		},
		[]string{"topic", "strategy"},
	)
	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_processing_duration_seconds",
			Help:    "Time from dequeue to persisted record",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		},
		[]string{"strategy"},
	)
)

var (
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_commits_total",
			Help: "Offset commits by result",
		},
		[]string{"topic", "result"}, // ok|failed|superseded
	)
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Records waiting in the work queue",
		},
		[]string{"topic"},
	)
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_session_state",
			Help: "Current session state (0=created .. 4=closed)",
		},
		[]string{"topic"},
	)
)

var MessagesProduced = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loadgen_messages_produced_total",
		Help: "Number of messages published by the load generator",
	},
	[]string{"topic"},
)

var registerOnce sync.Once

// MustRegister регистрирует коллекторы в default registry. Повторные вызовы ничего не делают.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RecordsConsumed, RecordsProcessed, RecordsFailed, ProcessingDuration,
			CommitsTotal, QueueDepth, SessionState,
			MessagesProduced,
		)
	})
}
