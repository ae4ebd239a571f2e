package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Succeeded("cube_compression_testing", 20*time.Millisecond)
	m.Succeeded("cube_compression_testing", 30*time.Millisecond)
	m.Failed("beam_flexural_testing", "parse")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reports.WithLabelValues("cube_compression_testing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("beam_flexural_testing", "parse")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failures.WithLabelValues("beam_flexural_testing", "render")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Failed("cube_frost_testing", "derive")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `acta_report_failures_total{protocol="cube_frost_testing",stage="derive"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Succeeded("x", time.Second)
		m.Failed("x", "parse")
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
