package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func serve(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReadinessReportsEachDependency(t *testing.T) {
	router := NewRouter(RouterParams{
		Config: &Config{AppEnv: "test"},
		Checks: map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})

	rec := serve(router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["postgres"])
	require.Equal(t, "connection refused", body["redis"])
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "test"}})

	id := uuid.New().String()
	rec := serve(router, http.MethodGet, "/healthz", http.Header{RequestIDHeader: {id}})
	require.Equal(t, id, rec.Header().Get(RequestIDHeader))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(router, http.MethodGet, "/healthz", http.Header{RequestIDHeader: {"not-a-uuid"}})
	minted, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, minted)
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "test"}, Metrics: observability.NewMetrics()})

	serve(router, http.MethodGet, "/healthz", nil)
	rec := serve(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `odyssey_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "1010", cfg.Accounts.Cash)
	require.Equal(t, int32(10), cfg.PGMaxConns)
	require.False(t, cfg.IsProduction())

	t.Setenv("LEDGER_REVERSAL_MODE", "undo")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "LEDGER_REVERSAL_MODE")

	t.Setenv("LEDGER_REVERSAL_MODE", "reversing_entry")
	t.Setenv("IDEMPOTENCY_RETENTION", "0s")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "IDEMPOTENCY_RETENTION")
}
