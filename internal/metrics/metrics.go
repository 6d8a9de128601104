package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Aggregation metrics
	AggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_aggregations_total",
			Help: "Total usage aggregations run",
		},
		[]string{"mode", "outcome"},
	)

	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screentime_aggregation_duration_seconds",
			Help:    "Aggregation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	ReportRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentime_report_rows",
			Help: "Number of applications in the last successful report",
		},
	)

	// Label metrics
	LabelFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_label_fallbacks_total",
			Help: "Label lookups that fell back to the application id",
		},
	)

	LabelCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_label_cache_hits_total",
			Help: "Label cache hits",
		},
	)

	// Tracker metrics
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_events_recorded_total",
			Help: "Total foreground events recorded by the tracker",
		},
		[]string{"kind"},
	)

	TrackerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_tracker_errors_total",
			Help: "Tracker poll errors",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(
		AggregationsTotal,
		AggregationDuration,
		ReportRows,
		LabelFallbacks,
		LabelCacheHits,
		EventsRecorded,
		TrackerErrors,
	)
}
