// Package server wires the HTTP routes and middleware chain.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nirasova/ether-gateway/common/logging"
	"github.com/nirasova/ether-gateway/common/middleware"
	"github.com/nirasova/ether-gateway/internal/gate"
	"github.com/nirasova/ether-gateway/internal/handlers"
)

// NewRouter builds the gateway's handler chain: request-id assignment runs
// outermost so even gate rejections carry a correlation id, then the access
// log, then the gate, then the mux.
func NewRouter(h *handlers.GatewayHandler, g *gate.Gate, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	// Sealed ingest surface
	mux.HandleFunc("/ether/ingest", h.HandleIngest)

	// Exempt surface
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.HandleFunc("/version", h.Version)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.Root)

	accessLog := middleware.AccessLog(func(r *http.Request, status int, duration time.Duration, ip string) {
		logger.InfoContext(r.Context(), "request",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(status),
			logging.IP(ip),
			slog.Duration("duration", duration),
		)
	})

	return middleware.RequestID(accessLog(g.Wrap(mux)))
}
