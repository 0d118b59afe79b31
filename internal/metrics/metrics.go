package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insight_ingest_active_tasks",
		Help: "Number of ingestion tasks currently in flight",
	})
)

// Counters
var (
	SegmentsUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_ingest_segments_uploaded_total",
		Help: "Total segments acknowledged by the backend",
	})
	SegmentRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_ingest_segment_retries_total",
		Help: "Total segment upload retries after transient failures",
	})
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_ingest_tasks_total",
		Help: "Total finished ingestion tasks by outcome",
	}, []string{"outcome"})
	StageObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_ingest_stage_observations_total",
		Help: "Total remote stage observations by pipeline",
	}, []string{"pipeline"})
	PreflightHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_ingest_preflight_hits_total",
		Help: "Total tasks short-circuited because content already existed",
	})
)

// Histograms
var (
	SegmentUploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_ingest_segment_upload_duration_seconds",
		Help:    "Duration of a successful segment upload including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)
