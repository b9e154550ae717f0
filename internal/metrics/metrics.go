// Package metrics exports compression run counters in Prometheus format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"compactpdf/internal/common"
	"compactpdf/internal/domain/compression"
)

// Metrics holds the compression collectors and the registry they live in.
//
// Metrics:
//   - compactpdf_documents_total{level,status} - documents processed
//   - compactpdf_bytes_saved_total - bytes saved across successful runs
//   - compactpdf_fallbacks_total{path} - runs finished on a non-standard path
//   - compactpdf_page_failures_total - pages left unmodified after a transformation error
//   - compactpdf_run_duration_seconds{level} - wall time per document
type Metrics struct {
	registry *prometheus.Registry

	DocumentsTotal    *prometheus.CounterVec
	BytesSavedTotal   prometheus.Counter
	FallbacksTotal    *prometheus.CounterVec
	PageFailuresTotal prometheus.Counter
	RunDuration       *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compactpdf_documents_total",
				Help: "Total number of documents processed",
			},
			[]string{"level", "status"},
		),
		BytesSavedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "compactpdf_bytes_saved_total",
				Help: "Total bytes saved by compression",
			},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compactpdf_fallbacks_total",
				Help: "Runs that finished on a path other than standard",
			},
			[]string{"path"},
		),
		PageFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "compactpdf_page_failures_total",
				Help: "Pages left unmodified after a transformation error",
			},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compactpdf_run_duration_seconds",
				Help:    "Time spent compressing one document",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"level"},
		),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one finished run.
func (m *Metrics) Observe(o compression.CompressionOutcome) {
	level := string(o.Level)
	status := "success"
	if !o.Success {
		status = "failure"
	}

	m.DocumentsTotal.WithLabelValues(level, status).Inc()
	m.RunDuration.WithLabelValues(level).Observe(o.Elapsed.Seconds())
	m.PageFailuresTotal.Add(float64(o.PageFailures))

	if !o.Success {
		return
	}
	m.BytesSavedTotal.Add(float64(o.SpaceSaved))
	if o.Path != compression.PathStandard && o.Path != "" {
		m.FallbacksTotal.WithLabelValues(o.Path).Inc()
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), common.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
