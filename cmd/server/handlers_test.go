package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cache-telemetry-service/internal/backend"
	"cache-telemetry-service/internal/core/service"
	"cache-telemetry-service/internal/eventlog"
	"cache-telemetry-service/internal/observability"
	"cache-telemetry-service/internal/stats"
	"cache-telemetry-service/internal/traceable"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := eventlog.New()
	svc := service.New(log)

	local, err := backend.NewLocal(1000, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	h := &handlers{
		svc:    svc,
		log:    log,
		caches: map[string]*traceable.Cache{"local": traceable.New("local", local, log)},
		logger: zap.NewNop(),
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(observability.NewReportCollector(svc.Report))

	srv := httptest.NewServer(h.routes(registry))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlers_RecordAndStats(t *testing.T) {
	srv := newTestServer(t)

	events := `[
		{"op":"get_item","hit":true,"start":"2024-01-01T00:00:00Z","end":"2024-01-01T00:00:00.010Z"},
		{"op":"get_item","hit":false},
		{"op":"save"},
		{"op":"delete_item"}
	]`
	resp := do(t, http.MethodPost, srv.URL+"/events?source=A", events)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report stats.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

	a, ok := report.Source("A")
	require.True(t, ok)
	assert.Equal(t, int64(4), a.Calls)
	assert.Equal(t, "50%", a.HitRatio)

	resp = do(t, http.MethodGet, srv.URL+"/stats/total", "")
	var total stats.Statistics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&total))
	assert.Equal(t, int64(2), total.Reads)
}

func TestHandlers_RecordRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/events?source=A", "{")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/events", "[]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_TracedCache(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/cache/set?source=local&key=a&value=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/cache/get?source=local&key=a", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/cache/get?source=local&key=missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/cache/mget?source=local&keys=a,b", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/cache/get?source=nope&key=a", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/stats", "")
	var report stats.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

	local, ok := report.Source("local")
	require.True(t, ok)
	assert.Equal(t, int64(4), local.Calls)
	assert.Equal(t, int64(1), local.Writes)
	assert.Equal(t, int64(4), local.Reads)
	assert.Equal(t, int64(2), local.Hits)
	assert.Equal(t, "50%", local.HitRatio)
}

func TestHandlers_ResetAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	do(t, http.MethodPost, srv.URL+"/events?source=A", `[{"op":"save"}]`)
	do(t, http.MethodGet, srv.URL+"/stats", "")

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cachestats_source_writes{source="A"} 1`)

	resp = do(t, http.MethodPost, srv.URL+"/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/stats/total", "")
	var total stats.Statistics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&total))
	assert.Zero(t, total.Calls)
	assert.Equal(t, stats.NotAvailable, total.HitRatio)
}
