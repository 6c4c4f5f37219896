package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	assessments        *prometheus.CounterVec
	riskScore          prometheus.Histogram
	anomalies          *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	auditErrors        prometheus.Counter
	liquidity          *prometheus.CounterVec
	latency            *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		assessments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defiguard_assessments_total",
				Help: "Total number of transfer assessments by outcome",
			},
			[]string{"accepted"},
		),
		riskScore: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "defiguard_risk_score",
				Help:    "Distribution of computed risk scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defiguard_anomalies_total",
				Help: "Total number of anomalies flagged by type",
			},
			[]string{"type"},
		),
		collaboratorErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defiguard_collaborator_errors_total",
				Help: "Total number of failed collaborator calls",
			},
			[]string{"collaborator"},
		),
		auditErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "defiguard_audit_errors_total",
				Help: "Total number of audit records that could not be handed off",
			},
		),
		liquidity: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defiguard_liquidity_decisions_total",
				Help: "Total number of liquidity decisions by outcome",
			},
			[]string{"adjust"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "defiguard_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAssessment records one assessment outcome and its duration.
func (r *Recorder) RecordAssessment(accepted bool, riskScore float64, seconds float64) {
	r.assessments.WithLabelValues(strconv.FormatBool(accepted)).Inc()
	r.riskScore.Observe(riskScore)
	r.latency.WithLabelValues("assess").Observe(seconds)
}

func (r *Recorder) RecordAnomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordCollaboratorError(collaborator string) {
	r.collaboratorErrors.WithLabelValues(collaborator).Inc()
}

func (r *Recorder) RecordAuditError() {
	r.auditErrors.Inc()
}

func (r *Recorder) RecordLiquidityDecision(adjust bool) {
	r.liquidity.WithLabelValues(strconv.FormatBool(adjust)).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
