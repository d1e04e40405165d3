package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pa"
	subsystem = "agent"
)

// 采集结果
const (
	outcomeSuccess       = "success"
	outcomeDisabled      = "disabled"
	outcomeSnapshotError = "snapshot_error"
	outcomeEncodeError   = "serialization_error"
	outcomeQueueError    = "queue_error"
	outcomePathError     = "invocation_error"
)

var (
	collectPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collect_passes_total",
			Help:      "Total number of collection passes by outcome",
		},
		[]string{"collector", "outcome"},
	)

	collectRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collect_records",
			Help:      "Number of records emitted by the last successful pass",
		},
		[]string{"collector"},
	)

	eventsDrainedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_drained_total",
			Help:      "Total number of events drained from the event queue",
		},
	)

	sinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sink_writes_total",
			Help:      "Total number of sink batch writes by status",
		},
		[]string{"sink", "status"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Number of events waiting in the event queue",
		},
	)
)
