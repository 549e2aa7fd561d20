package observability

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counter(t *testing.T) {
	p := NewPrometheus("test")

	p.Incr(RemoteAttempts, map[string]string{"service": "movie-service", "outcome": "success"})
	p.Incr(RemoteAttempts, map[string]string{"service": "movie-service", "outcome": "success"})
	p.Add(RemoteAttempts, 3, map[string]string{"service": "movie-service", "outcome": "not_found"})

	vec := p.counters[RemoteAttempts]
	require.NotNil(t, vec)
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("success", "movie-service")))
	assert.Equal(t, 3.0, testutil.ToFloat64(vec.WithLabelValues("not_found", "movie-service")))
}

func TestPrometheus_MismatchedLabelsDropped(t *testing.T) {
	p := NewPrometheus("test")

	p.Incr(SettlementJobs, map[string]string{"state": "succeeded"})
	p.Incr(SettlementJobs, map[string]string{"other": "x"})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters[SettlementJobs].WithLabelValues("succeeded")))
}

func TestPrometheus_GaugeAndHistogram(t *testing.T) {
	p := NewPrometheus("test")

	p.Set(SettlementQueueDepth, 4, nil)
	p.Observe(RemoteAttemptDuration, 0.25, map[string]string{"service": "booking-service"})

	assert.Equal(t, 4.0, testutil.ToFloat64(p.gauges[SettlementQueueDepth].WithLabelValues()))
	assert.Equal(t, 1, testutil.CollectAndCount(p.histograms[RemoteAttemptDuration]))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus("cinemesh")
	p.Incr(SettlementConfirmationFails, nil)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cinemesh_settlement_confirmation_failed 1"))
}

func TestNoop_SatisfiesMetrics(t *testing.T) {
	var m Metrics = Noop{}
	m.Incr("anything", nil)
	m.Set("anything", 1, nil)
	m.Observe("anything", 1, nil)
}
