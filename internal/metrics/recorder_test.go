package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/metrics"
)

func TestHealthDerivation(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		ok      int
		failed  int
		latency time.Duration
		want    metrics.Status
	}{
		{name: "no traffic", want: metrics.StatusUnknown},
		{name: "all good", ok: 10, latency: 200 * time.Millisecond, want: metrics.StatusHealthy},
		{name: "twenty percent is still healthy", ok: 8, failed: 2, latency: time.Second, want: metrics.StatusHealthy},
		{name: "error rate above twenty percent", ok: 7, failed: 3, latency: time.Second, want: metrics.StatusDegraded},
		{name: "slow", ok: 5, latency: 11 * time.Second, want: metrics.StatusDegraded},
		{name: "half failing is degraded", ok: 5, failed: 5, latency: time.Second, want: metrics.StatusDegraded},
		{name: "majority failing", ok: 4, failed: 6, latency: time.Second, want: metrics.StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := metrics.NewRecorder(nil, "pricing")
			for i := 0; i < tt.ok; i++ {
				rec.Record("pricing", nil, tt.latency)
			}
			for i := 0; i < tt.failed; i++ {
				rec.Record("pricing", boom, tt.latency)
			}
			require.Equal(t, tt.want, rec.Health()["pricing"])
		})
	}
}

func TestLatencyWindowKeepsLastHundred(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	for i := 0; i < 100; i++ {
		rec.Record("discovery", nil, 30*time.Second)
	}
	require.Equal(t, metrics.StatusDegraded, rec.Snapshot("discovery").Status)

	for i := 0; i < 100; i++ {
		rec.Record("discovery", nil, 100*time.Millisecond)
	}
	snap := rec.Snapshot("discovery")
	require.Equal(t, int64(200), snap.Requests)
	require.Equal(t, 100*time.Millisecond, snap.AvgLatency)
	require.Equal(t, metrics.StatusHealthy, snap.Status)
}

func TestRecorderConcurrentUse(t *testing.T) {
	rec := metrics.NewRecorder(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.Record("geocoding", nil, time.Millisecond)
				_ = rec.Health()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(400), rec.Snapshot("geocoding").Requests)
}

func TestPrometheusExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg, "pricing")
	rec.Record("pricing", &apperr.RateLimitError{Service: "pricing"}, time.Second)
	rec.ObserveCache("hotel-pricing", true)

	r := chi.NewRouter()
	r.Use(rec.Middleware)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Method(http.MethodGet, "/metrics", rec.Handler())

	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	res.Body.Close()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	require.Contains(t, body, `provider_requests_total{outcome="rate_limited",provider="pricing"} 1`)
	require.Contains(t, body, `cache_lookups_total{namespace="hotel-pricing",result="hit"} 1`)
	require.Contains(t, body, `http_requests_total{method="GET",route="/ping",status="204"} 1`)
}
