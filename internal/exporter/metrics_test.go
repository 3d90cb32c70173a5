package exporter

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue finds a counter sample by metric name and label pair in
// the default registry.
func counterValue(t *testing.T, name, labelName, labelValue string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		if mf.GetType() != dto.MetricType_COUNTER {
			t.Fatalf("%s is %s, want counter", name, mf.GetType())
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == labelName && lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestExportOutcomeCounters(t *testing.T) {
	e := newExporter(true, staticGate(true), &mockCache{}, &mockSubmitter{})

	submittedBefore := counterValue(t, "trace_governor_exports_total", "outcome", "submitted")
	suppressedBefore := counterValue(t, "trace_governor_exports_total", "outcome", "suppressed")

	if err := e.Export(context.Background(), batchOf("span")); err != nil {
		t.Fatalf("Export: %v", err)
	}

	blocked := newExporter(true, staticGate(false), &mockCache{}, &mockSubmitter{})
	if err := blocked.Export(context.Background(), batchOf("span")); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if got := counterValue(t, "trace_governor_exports_total", "outcome", "submitted"); got != submittedBefore+1 {
		t.Errorf("submitted counter = %v, want %v", got, submittedBefore+1)
	}
	if got := counterValue(t, "trace_governor_exports_total", "outcome", "suppressed"); got != suppressedBefore+1 {
		t.Errorf("suppressed counter = %v, want %v", got, suppressedBefore+1)
	}
}
