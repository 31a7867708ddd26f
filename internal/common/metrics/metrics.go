// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_predictions_total",
			Help: "Total number of predictions served by class",
		},
		[]string{"credit_score", "risk_level"},
	)

	PredictionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_prediction_failures_total",
			Help: "Total number of rejected or failed prediction requests",
		},
		[]string{"error_code"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_prediction_duration_seconds",
			Help:    "Duration of pipeline plus model evaluation in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"explain"},
	)

	RepairFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_pipeline_unrecoverable_cells_total",
			Help: "Numeric cells that could not be repaired and were treated as missing",
		},
		[]string{"field"},
	)

	CappedValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_pipeline_capped_values_total",
			Help: "Numeric values clipped into their bounds",
		},
		[]string{"field"},
	)

	Imputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_pipeline_imputations_total",
			Help: "Missing values filled by the imputer",
		},
		[]string{"field", "source"},
	)

	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_audit_events_total",
			Help: "Audit events by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		},
	)

	ModelInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credit_model_info",
			Help: "Loaded model artifact; value is always 1",
		},
		[]string{"model_version", "pipeline_version", "checksum"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "credit_http_request_duration_seconds",
			Help: "HTTP request latency by route and status",
		},
		[]string{"method", "route", "status"},
	)
)
