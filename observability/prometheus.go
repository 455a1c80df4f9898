package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver fans selected engine/pool/task events out to
// Prometheus collectors. It is grounded on the metrics shape of
// graph/metrics.go in the dshills-langgraph-go example repo: a gauge for
// work-in-flight, a counter vector for terminal outcomes, and a histogram
// for per-unit-of-work duration, registered via promauto exactly as that
// file does.
type PrometheusObserver struct {
	activeWorkers prometheus.Gauge
	taskOutcomes  *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors against reg and returns an
// Observer ready to be placed in the named registry under "prometheus".
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusObserver{
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "simkernel",
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Number of task closures currently executing in the worker pool.",
		}),
		taskOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simkernel",
			Subsystem: "task",
			Name:      "outcomes_total",
			Help:      "Completed tasks labeled by batch and outcome (ok, failed).",
		}, []string{"batch", "outcome"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simkernel",
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a single task closure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"batch"}),
	}
}

// OnEvent implements Observer.
func (p *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	switch event.Type {
	case EventWorkerStart:
		p.activeWorkers.Inc()
	case EventWorkerDone:
		p.activeWorkers.Dec()
	case EventTaskComplete:
		batch, _ := event.Data["batch"].(string)
		outcome, _ := event.Data["outcome"].(string)
		if outcome == "" {
			outcome = "ok"
		}
		p.taskOutcomes.WithLabelValues(batch, outcome).Inc()

		if seconds, ok := event.Data["duration_seconds"].(float64); ok {
			p.taskDuration.WithLabelValues(batch).Observe(seconds)
		}
	}
}
