package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnceAndReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := New(reg)
	if err != nil {
		t.Fatalf("second New on same registry: %v", err)
	}

	m1.ObserveSubmitted("TOKEN")
	m2.ObserveSubmitted("TOKEN")
	if got := testutil.ToFloat64(m1.Submitted.WithLabelValues("TOKEN")); got != 2 {
		t.Fatalf("want shared counter at 2, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmitted("TOKEN")
	m.ObserveStoreError("query")
	m.ObserveQuery(3)
}

func TestObserveStoreErrorAndQuery(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	m.ObserveStoreError("query")
	if got := testutil.ToFloat64(m.StoreErrors.WithLabelValues("query")); got != 1 {
		t.Fatalf("want 1 got %v", got)
	}
	m.ObserveQuery(5)
	if n := testutil.CollectAndCount(m.QueryResults); n != 1 {
		t.Fatalf("want 1 histogram series, got %d", n)
	}
}
