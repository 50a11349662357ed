package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "timingscan_"

var TasksTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: MetricPrefix + "tasks_total",
		Help: "Number of (target, subtask) pairs registered for this run",
	},
)

var TasksFinished = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "tasks_finished_total",
		Help: "Number of (target, subtask) pairs that have been processed",
	},
)

var Failures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "failures_total",
		Help: "Number of failures grouped by category",
	},
	[]string{"category"},
)

var Findings = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "findings_total",
		Help: "Number of variant pairs found to be distinguishable",
	},
)

var OracleDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "oracle_decisions_total",
		Help: "Number of significance oracle decisions grouped by decision",
	},
	[]string{"decision"},
)

var OracleLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    MetricPrefix + "oracle_latency_seconds",
		Help:    "Time taken by one significance oracle invocation",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	},
)

var MeasurementLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricPrefix + "measurement_latency_seconds",
		Help:    "Successful measurement samples grouped by subtask",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20),
	},
	[]string{"subtask"},
)

var Remediations = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "remediations_total",
		Help: "Number of target restarts requested after repeated unreachability",
	},
)
