package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

// WorkflowMetrics counts workflow outcomes and breaker transitions. Its collectors
// are registered into the api or worker registry by the caller.
type WorkflowMetrics struct {
	service string

	outcomes       *prometheus.CounterVec
	touchless      prometheus.Counter
	stageErrors    prometheus.Counter
	confidence     prometheus.Histogram
	processingTime prometheus.Histogram
	breakerState   *prometheus.GaugeVec
}

func NewWorkflowMetrics(service string) *WorkflowMetrics {
	labels := prometheus.Labels{"service": service}
	return &WorkflowMetrics{
		service: service,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "outcomes_total",
			Help:        "Completed workflow runs by resulting processing status.",
			ConstLabels: labels,
		}, []string{"processing_status"}),
		touchless: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "touchless_total",
			Help:        "Invoices booked without human interaction.",
			ConstLabels: labels,
		}),
		stageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "stage_errors_total",
			Help:        "Processing errors recorded by workflow stages.",
			ConstLabels: labels,
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "confidence_score",
			Help:        "Validation confidence score per processed invoice.",
			Buckets:     []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
			ConstLabels: labels,
		}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "duration_seconds",
			Help:        "Wall time of one workflow run.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: labels,
		}, []string{"operation"}),
	}
}

func (m *WorkflowMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.outcomes, m.touchless, m.stageErrors, m.confidence, m.processingTime, m.breakerState}
}

func (m *WorkflowMetrics) ObserveRecord(rec *domain.ProcessingRecord) {
	if rec == nil {
		return
	}
	status := string(rec.ProcessingStatus)
	if status == "" {
		status = "unknown"
	}
	m.outcomes.WithLabelValues(status).Inc()
	if rec.IsTouchless {
		m.touchless.Inc()
	}
	if n := len(rec.ProcessingErrors); n > 0 {
		m.stageErrors.Add(float64(n))
	}
	m.confidence.Observe(rec.ConfidenceScore)
	m.processingTime.Observe(rec.ProcessingTime)
}

// BreakerStateChanged matches resilience.StateListener.
func (m *WorkflowMetrics) BreakerStateChanged(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(to))
}
