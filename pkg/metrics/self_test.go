package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterSelfMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	// Should not panic.
	RegisterSelfMetrics(reg)

	// Initialise the counter vec so it appears in Gather output.
	ScrapeErrors.WithLabelValues("test-register").Add(0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	want := map[string]bool{
		"lnd_exporter_collect_duration_seconds":        false,
		"lnd_exporter_scrape_errors_total":             false,
		"lnd_exporter_payment_index_offset":            false,
		"lnd_exporter_cursor_persist_duration_seconds": false,
	}

	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("expected metric family %q not found in gathered output", name)
		}
	}
}

func TestSelfMetricsUpdate(t *testing.T) {
	// Verify that updating the global metrics doesn't panic and produces
	// the expected values when gathered.
	reg := prometheus.NewRegistry()
	RegisterSelfMetrics(reg)

	CursorIndexOffset.Set(42)
	CollectDuration.Observe(1.5)
	ScrapeErrors.WithLabelValues("getinfo").Inc()
	PersistDuration.Observe(0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	var offset float64
	for _, fam := range families {
		if fam.GetName() == "lnd_exporter_payment_index_offset" {
			offset = fam.GetMetric()[0].GetGauge().GetValue()
		}
	}

	if offset != 42 {
		t.Errorf("payment_index_offset = %v, want 42", offset)
	}
}
