// Package handlers exposes the gateway's HTTP surface: the ingest endpoint
// plus the unauthenticated health, readiness and version endpoints.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/nirasova/ether-gateway/common/httputil"
	"github.com/nirasova/ether-gateway/common/logging"
	"github.com/nirasova/ether-gateway/common/middleware"
	"github.com/nirasova/ether-gateway/internal/contract"
	"github.com/nirasova/ether-gateway/internal/meta"
	"github.com/nirasova/ether-gateway/internal/metrics"
	"github.com/nirasova/ether-gateway/internal/ratelimit"
	"github.com/nirasova/ether-gateway/internal/replay"
)

// unknownSource keys the limiter for requests that declare no source.
const unknownSource = "unknown"

// Ingestor is the decision service behind the transport.
type Ingestor interface {
	Ingest(ctx context.Context, req contract.IngestRequest) (contract.IngestResponse, *contract.Error)
}

// GatewayHandler binds the ingest pipeline stages to HTTP.
type GatewayHandler struct {
	service          Ingestor
	limiter          ratelimit.Limiter
	replay           replay.Cache
	maxBodyBytes     int64
	version          string
	environment      string
	rateLimitBackend string
	replayBackend    string
	logger           *logging.Logger
}

// Config holds the handler's operational knobs.
type Config struct {
	MaxBodyBytes int64
	Version      string
	Environment  string

	// Backend names surfaced on the readiness endpoint so operators can
	// see which limiter/replay stores a replica selected at startup.
	RateLimitBackend string
	ReplayBackend    string
}

// NewGatewayHandler wires the handler.
func NewGatewayHandler(svc Ingestor, limiter ratelimit.Limiter, cache replay.Cache, cfg Config, logger *logging.Logger) *GatewayHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RateLimitBackend == "" {
		cfg.RateLimitBackend = "memory"
	}
	if cfg.ReplayBackend == "" {
		cfg.ReplayBackend = "memory"
	}
	return &GatewayHandler{
		service:          svc,
		limiter:          limiter,
		replay:           cache,
		maxBodyBytes:     cfg.MaxBodyBytes,
		version:          cfg.Version,
		environment:      cfg.Environment,
		rateLimitBackend: cfg.RateLimitBackend,
		replayBackend:    cfg.ReplayBackend,
		logger:           logger,
	}
}

// HandleIngest is POST /ether/ingest. Stage order is fixed: rate limit,
// replay check, parse/validate, ingest. Every reject path returns the
// uniform error envelope; nothing is silently dropped.
func (h *GatewayHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if r.Method != http.MethodPost {
		h.writeErrorStatus(w, requestID, http.StatusMethodNotAllowed,
			contract.InvalidRequest("method not allowed"))
		return
	}

	if cl := r.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > h.maxBodyBytes {
			h.writeError(w, requestID, contract.InvalidRequest("request body too large").
				WithDetails(map[string]any{"max_bytes": h.maxBodyBytes}))
			return
		}
	}

	m := meta.Extract(r)
	source := m.Source
	if source == "" {
		source = unknownSource
	}

	allowed, retryAfter, err := h.limiter.Allow(ctx, source)
	if err != nil {
		h.logger.ErrorContext(ctx, "rate limiter unavailable", logging.Error(err))
		h.writeError(w, requestID, contract.DependencyDown("rate limiter unavailable"))
		return
	}
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(source).Inc()
		retrySeconds := int(retryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
		h.writeError(w, requestID, contract.RateLimited("rate limited").WithDetails(map[string]any{
			"retry_after_seconds": retrySeconds,
			"source":              source,
		}))
		return
	}

	// Header-derived replay key first; a body-supplied idempotency key gets
	// a second chance below once the envelope is parsed.
	headerKey := m.IdempotencyKey
	if headerKey == "" {
		headerKey = m.RequestID
	}
	if headerKey != "" {
		if dup, rerr := h.seen(ctx, source, headerKey); rerr != nil {
			h.writeError(w, requestID, rerr)
			return
		} else if dup {
			metrics.ReplayHits.WithLabelValues(source).Inc()
			h.writeError(w, requestID, contract.Conflict("duplicate request detected (idempotency)").
				WithDetails(map[string]any{"source": source}))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.writeError(w, requestID, contract.InvalidRequest("request body too large").
			WithDetails(map[string]any{"max_bytes": h.maxBodyBytes}))
		return
	}

	if len(body) == 0 {
		h.writeError(w, requestID, contract.InvalidRequest("request body is required"))
		return
	}
	metrics.RequestBytesTotal.Add(float64(len(body)))

	req, perr := contract.ParseRequest(body)
	if perr != nil {
		h.writeError(w, requestID, perr)
		return
	}

	if req.IdempotencyKey != "" && req.IdempotencyKey != headerKey {
		if dup, rerr := h.seen(ctx, source, req.IdempotencyKey); rerr != nil {
			h.writeError(w, requestID, rerr)
			return
		} else if dup {
			metrics.ReplayHits.WithLabelValues(source).Inc()
			h.writeError(w, requestID, contract.Conflict("duplicate request detected (idempotency)").
				WithDetails(map[string]any{"source": source}))
			return
		}
	}

	resp, ierr := h.service.Ingest(ctx, req)
	if ierr != nil {
		h.writeError(w, requestID, ierr)
		return
	}
	if resp.RequestID == "" {
		resp.RequestID = requestID
	}
	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

func (h *GatewayHandler) seen(ctx context.Context, source, key string) (bool, *contract.Error) {
	dup, err := h.replay.Seen(ctx, source+":"+key)
	if err != nil {
		h.logger.ErrorContext(ctx, "replay cache unavailable", logging.Error(err))
		return false, contract.DependencyDown("replay cache unavailable")
	}
	return dup, nil
}

// Health is the liveness endpoint, exempt from the gate.
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports readiness and the backends this replica selected at
// startup, exempt from the gate.
func (h *GatewayHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":             "ready",
		"rate_limit_backend": h.rateLimitBackend,
		"replay_backend":     h.replayBackend,
	})
}

// Version is the fingerprint endpoint, exempt from the gate.
func (h *GatewayHandler) Version(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service":     "ether-gateway",
		"version":     h.version,
		"environment": h.environment,
	})
}

// Root serves the exempt "/" fingerprint; anything else that falls through
// the mux is an unknown path behind the gate.
func (h *GatewayHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		requestID := middleware.GetRequestID(r.Context())
		h.writeError(w, requestID, contract.NotFound("unknown path"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"service": "ether-gateway", "status": "sealed"})
}

func (h *GatewayHandler) writeError(w http.ResponseWriter, requestID string, e *contract.Error) {
	h.writeErrorStatus(w, requestID, e.HTTPStatus(), e)
}

func (h *GatewayHandler) writeErrorStatus(w http.ResponseWriter, requestID string, status int, e *contract.Error) {
	httputil.WriteJSON(w, status, contract.NewErrorResponse(requestID, e))
}
