package metrics

import "testing"

func TestRegistry_CountersIncrement(t *testing.T) {
	m := New()
	m.LoopIterations.Inc()
	m.BytesSent.Add(128)

	mfs, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			found[mf.GetName()] = metric.GetCounter().GetValue()
		}
	}
	if found["reactor_loop_iterations_total"] != 1 {
		t.Fatalf("expected loop_iterations_total=1, got %v", found["reactor_loop_iterations_total"])
	}
	if found["reactor_bytes_sent_total"] != 128 {
		t.Fatalf("expected bytes_sent_total=128, got %v", found["reactor_bytes_sent_total"])
	}
}
