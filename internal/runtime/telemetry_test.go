package runtime

import (
	"testing"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.ObserveLinks(3)
	m.ObserveFetch(true, 10*time.Millisecond)
	m.ObserveFetch(false, 20*time.Millisecond)
	m.ObserveFetch(true, 5*time.Millisecond)
	m.ObserveFragment(models.CategoryChat)
	m.ObserveMerge(false)

	if got := testutil.ToFloat64(m.LinksParsed); got != 3 {
		t.Fatalf("links parsed = %v", got)
	}
	if got := testutil.ToFloat64(m.FetchOutcomes.WithLabelValues("success")); got != 2 {
		t.Fatalf("fetch successes = %v", got)
	}
	if got := testutil.ToFloat64(m.Fragments.WithLabelValues("chat")); got != 1 {
		t.Fatalf("chat fragments = %v", got)
	}
	if got := testutil.ToFloat64(m.MergeDocuments.WithLabelValues("failure")); got != 1 {
		t.Fatalf("merge failures = %v", got)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLinks(1)
	m.ObserveFetch(true, time.Second)
	m.ObserveStage(models.StageMerge, time.Second)
}
