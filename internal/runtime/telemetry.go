package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	LinksParsed    prometheus.Counter
	FetchOutcomes  *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	Fragments      *prometheus.CounterVec
	PlainDocuments prometheus.Counter
	MergeDocuments *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		LinksParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "specharvest", Name: "links_parsed_total",
			Help: "Link records produced by index parsing.",
		}),
		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specharvest", Name: "fetch_outcomes_total",
			Help: "Document retrievals by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "specharvest", Name: "fetch_duration_seconds",
			Help:    "Latency of single document retrievals.",
			Buckets: prometheus.DefBuckets,
		}),
		Fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specharvest", Name: "fragments_total",
			Help: "Specification fragments extracted, by category.",
		}, []string{"category"}),
		PlainDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "specharvest", Name: "plain_documents_total",
			Help: "Documents kept as plain content.",
		}),
		MergeDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specharvest", Name: "merge_documents_total",
			Help: "Per-category merge results.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "specharvest", Name: "stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.LinksParsed, m.FetchOutcomes, m.FetchDuration, m.Fragments, m.PlainDocuments, m.MergeDocuments, m.StageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) ObserveLinks(n int) {
	if m == nil {
		return
	}
	m.LinksParsed.Add(float64(n))
}

func (m *Metrics) ObserveFetch(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.FetchOutcomes.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveFragment(category models.Category) {
	if m == nil {
		return
	}
	m.Fragments.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) ObservePlain() {
	if m == nil {
		return
	}
	m.PlainDocuments.Inc()
}

func (m *Metrics) ObserveMerge(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.MergeDocuments.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStage(stage models.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ServeMetrics exposes gatherer on a dedicated port when telemetry is
// enabled. The returned function shuts the listener down.
func ServeMetrics(cfg config.TelemetryConfig, gatherer prometheus.Gatherer, logger *log.Logger) func(context.Context) error {
	if !cfg.Enabled || cfg.MetricsPort <= 0 {
		return func(context.Context) error { return nil }
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server error: %v", err)
		}
	}()
	return server.Shutdown
}
