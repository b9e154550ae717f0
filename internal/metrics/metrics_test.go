package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/domain/compression"
)

func TestObserve_WriteTextfile(t *testing.T) {
	m := New()

	m.Observe(compression.CompressionOutcome{
		Level:      compression.LevelBalanced,
		Success:    true,
		SpaceSaved: 400,
		Elapsed:    200 * time.Millisecond,
		Path:       compression.PathStandard,
	})
	m.Observe(compression.CompressionOutcome{
		Level:        compression.LevelAggressive,
		Success:      true,
		SpaceSaved:   100,
		Path:         compression.PathEscalated,
		PageFailures: 2,
	})
	m.Observe(compression.CompressionOutcome{
		Level:   compression.LevelBalanced,
		Success: false,
	})

	path := filepath.Join(t.TempDir(), "out", "compactpdf.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `compactpdf_documents_total{level="balanced",status="success"} 1`)
	assert.Contains(t, text, `compactpdf_documents_total{level="balanced",status="failure"} 1`)
	assert.Contains(t, text, `compactpdf_documents_total{level="aggressive",status="success"} 1`)
	assert.Contains(t, text, "compactpdf_bytes_saved_total 500")
	assert.Contains(t, text, `compactpdf_fallbacks_total{path="escalated"} 1`)
	assert.NotContains(t, text, `path="standard"`)
	assert.Contains(t, text, "compactpdf_page_failures_total 2")
	assert.Contains(t, text, `compactpdf_run_duration_seconds_count{level="balanced"} 2`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.BytesSavedTotal.Add(5)

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "compactpdf_bytes_saved_total" {
			assert.Zero(t, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
