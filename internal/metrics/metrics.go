// Package metrics exposes this process's Prometheus series, adapted from
// the lineage's internal/bot/metrics.go namespace/subsystem convention: one
// namespace for the whole process, one subsystem per core component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalengine"

// ============ triggers (internal/triggerindex) ============

var ActiveTriggers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "triggers",
		Name:      "active_total",
		Help:      "Current number of triggers held in the in-memory index",
	},
)

var RebuildDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "triggers",
		Name:      "rebuild_duration_ms",
		Help:      "Time to rebuild the full trigger index in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	},
)

var RebuildFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "triggers",
		Name:      "rebuild_failures_total",
		Help:      "Number of trigger index rebuild attempts that failed",
	},
)

// ============ evaluator (internal/evaluator) ============

var TicksProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "ticks_processed_total",
		Help:      "Number of ticks run against the trigger index",
	},
	[]string{"source"},
)

var HitsDispatched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "hits_dispatched_total",
		Help:      "Number of trigger hits dispatched to the Lifecycle Service",
	},
	[]string{"trigger_type"},
)

var DebounceDrops = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "debounce_drops_total",
		Help:      "Number of trigger hits suppressed by the debounce window",
	},
	[]string{"trigger_type"},
)

// ============ lifecycle (internal/lifecycle) ============

var Transitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Number of state transitions applied, by entity kind and transition",
	},
	[]string{"entity_kind", "transition"},
)

var EventAppends = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "event_appends_total",
		Help:      "Number of event-log rows appended, by entity kind",
	},
	[]string{"entity_kind"},
)

// ============ exchange (internal/exchange) ============

var Reconnects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "reconnects_total",
		Help:      "Number of WebSocket reconnect attempts, by source",
	},
	[]string{"source"},
)

var DecodeErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "decode_errors_total",
		Help:      "Number of frames that failed to decode, by source",
	},
	[]string{"source"},
)

// ============ notifier (internal/notifier) ============

var NotifierCalls = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "calls_total",
		Help:      "Number of outbound notifier calls, by operation and outcome",
	},
	[]string{"operation", "outcome"}, // outcome: success, error
)
