package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nirasova/ether-gateway/common/logging"
	"github.com/nirasova/ether-gateway/internal/contract"
	"github.com/nirasova/ether-gateway/internal/egress"
	"github.com/nirasova/ether-gateway/internal/gate"
	"github.com/nirasova/ether-gateway/internal/handlers"
	"github.com/nirasova/ether-gateway/internal/meta"
	"github.com/nirasova/ether-gateway/internal/ratelimit"
	"github.com/nirasova/ether-gateway/internal/replay"
	"github.com/nirasova/ether-gateway/internal/service"
)

const testToken = "internal-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	router := egress.NewRouter()
	router.Register(contract.EventMerchantCreated, func(ctx context.Context, e contract.Envelope) error {
		return nil
	})

	svc := service.NewIngestService(router, logger)
	h := handlers.NewGatewayHandler(svc,
		ratelimit.NewMemoryLimiter(120, time.Minute),
		replay.NewMemoryCache(10*time.Minute, replay.DefaultSweepThreshold),
		handlers.Config{Version: "2.0.2-sealed", Environment: "test"},
		logger,
	)
	g := gate.New(gate.Config{
		Secret:         testToken,
		AllowedSources: []string{"sova", "admin"},
	})

	srv := httptest.NewServer(NewRouter(h, g, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_IngestEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	body := `{"event_type":"merchant.created","meta":{"source":"sova"},"merchant":{"merchant_id":"m_1"},"payload":{"plan":"growth"}}`
	resp := doRequest(t, srv, http.MethodPost, "/ether/ingest", body, map[string]string{
		gate.HeaderInternalToken: testToken,
		meta.HeaderSource:        "sova",
	})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out contract.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	assert.True(t, out.Routed)
	assert.True(t, strings.HasPrefix(out.RequestID, "req_"))
}

func TestRouter_IngestWithoutTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/ether/ingest",
		`{"event_type":"merchant.created","meta":{"source":"sova"},"merchant":{"merchant_id":"m_1"}}`,
		map[string]string{meta.HeaderSource: "sova"})

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var out contract.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, contract.CodeUnauthorizedCaller, out.Err.Code)
	// The middleware assigns a request id even on gate rejections.
	assert.True(t, strings.HasPrefix(out.RequestID, "req_"))
}

func TestRouter_IngestDisallowedSourceIsForbidden(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/ether/ingest",
		`{"event_type":"merchant.created","meta":{"source":"exclusivity"},"merchant":{"merchant_id":"m_1"}}`,
		map[string]string{
			gate.HeaderInternalToken: testToken,
			meta.HeaderSource:        "exclusivity",
		})

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var out contract.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, contract.CodeForbidden, out.Err.Code)
}

func TestRouter_ExemptPathsSkipTheGate(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/health", "/readyz", "/version", "/metrics", "/"} {
		t.Run(path, func(t *testing.T) {
			resp := doRequest(t, srv, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode, "path %s must not require the token", path)
		})
	}
}

func TestRouter_UnknownPathBehindGate(t *testing.T) {
	srv := newTestServer(t)

	// Without the token an unknown path is rejected by the gate, not 404.
	resp := doRequest(t, srv, http.MethodGet, "/internal/debug", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With the token it falls through the mux to the 404 handler.
	resp = doRequest(t, srv, http.MethodGet, "/internal/debug", "", map[string]string{
		gate.HeaderInternalToken: testToken,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var out contract.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, contract.CodeNotFound, out.Err.Code)
}

func TestRouter_RequestIDReflectedOnResponse(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(meta.HeaderRequestID))

	resp = doRequest(t, srv, http.MethodGet, "/version", "", map[string]string{
		meta.HeaderRequestID: "req_caller_supplied",
	})
	assert.Equal(t, "req_caller_supplied", resp.Header.Get(meta.HeaderRequestID))
}
