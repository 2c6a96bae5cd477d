package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsync"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	operations    *prom.CounterVec
	cycleDuration prom.Histogram
	cycleOutcomes *prom.CounterVec
	diagnostics   prom.Counter
	degraded      prom.Counter
}

// NewPrometheusRecorder creates the metrics and registers them with reg. A
// nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Document operations applied by sync cycles",
		}, []string{"op"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles",
			Buckets:   prom.DefBuckets,
		}),
		cycleOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_outcomes_total",
			Help:      "Sync cycles by final status",
		}, []string{"outcome"}),
		diagnostics: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Verification diagnostics reported after sync cycles",
		}),
		degraded: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_layouts_total",
			Help:      "Layouts that could not be loaded and were replaced by an empty layout",
		}),
	}
	reg.MustRegister(pr.operations, pr.cycleDuration, pr.cycleOutcomes, pr.diagnostics, pr.degraded)
	return pr
}

func (p *PrometheusRecorder) AddOperations(op string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.operations.WithLabelValues(op).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome Outcome) {
	if p == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddDiagnostics(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.diagnostics.Add(float64(n))
}

func (p *PrometheusRecorder) IncDegradedLayout() {
	if p == nil {
		return
	}
	p.degraded.Inc()
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
