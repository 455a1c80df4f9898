package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/karurochori/simkernel/observability"
)

func TestPrometheusObserverWorkerGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := observability.NewPrometheusObserver(reg)

	ctx := context.Background()
	obs.OnEvent(ctx, observability.Event{Type: observability.EventWorkerStart})
	obs.OnEvent(ctx, observability.Event{Type: observability.EventWorkerStart})
	obs.OnEvent(ctx, observability.Event{Type: observability.EventWorkerDone})

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	gauge := findMetric(t, metrics, "simkernel_pool_active_workers")
	if gauge.GetGauge().GetValue() != 1 {
		t.Errorf("active_workers = %v, want 1", gauge.GetGauge().GetValue())
	}
}

func TestPrometheusObserverTaskOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := observability.NewPrometheusObserver(reg)

	ctx := context.Background()
	obs.OnEvent(ctx, observability.Event{
		Type: observability.EventTaskComplete,
		Data: map[string]any{"batch": "walk", "outcome": "ok", "duration_seconds": 0.25},
	})
	obs.OnEvent(ctx, observability.Event{
		Type: observability.EventTaskComplete,
		Data: map[string]any{"batch": "walk", "outcome": "failed", "duration_seconds": 0.5},
	})

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	family := findMetric(t, metrics, "simkernel_task_outcomes_total")
	if len(family.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(family.GetMetric()))
	}
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not found among %d families", name, len(families))
	return nil
}
