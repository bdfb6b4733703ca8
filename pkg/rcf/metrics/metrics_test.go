package metrics

import "testing"

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()
	if _, err := m.Registry.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

func TestMetricsAreIndependentAcrossInstances(t *testing.T) {
	a := New()
	b := New()

	a.EntriesSeen.Inc()

	got := gatherCounter(t, a, "rcf_entries_seen_total")
	if got != 1 {
		t.Fatalf("a.EntriesSeen = %f, want 1", got)
	}
	if got := gatherCounter(t, b, "rcf_entries_seen_total"); got != 0 {
		t.Fatalf("b.EntriesSeen = %f, want 0 (registries must not share state)", got)
	}
}

func gatherCounter(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
