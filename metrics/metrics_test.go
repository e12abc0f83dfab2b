package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/health", http.MethodGet, 200, 10*time.Millisecond)
	m.ObserveRequest("/api/health", http.MethodGet, 200, 20*time.Millisecond)
	m.ObserveRequest("/api/simulate", http.MethodPost, 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/health", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/simulate", "POST", "400")))
}

func TestObserveSimulation(t *testing.T) {
	m := New()
	m.ObserveSimulation("transport", "rules", time.Millisecond)
	m.CacheHit()
	m.LLMFallback()
	m.SetBaseline(7, 1234.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulationsTotal.WithLabelValues("transport", "rules")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmFallbacks))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.stations))
	assert.Equal(t, 1234.5, testutil.ToFloat64(m.baselineTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSimulation("energy", "llm", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `co2sim_simulations_total{sector="energy",source="llm"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
