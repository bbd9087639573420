// Package service holds the ingest decision logic: the single synchronous
// entry point between transport and egress. It performs no I/O of its own.
package service

import (
	"context"
	"log/slog"

	"github.com/nirasova/ether-gateway/common/logging"
	"github.com/nirasova/ether-gateway/internal/contract"
	"github.com/nirasova/ether-gateway/internal/egress"
	"github.com/nirasova/ether-gateway/internal/metrics"
)

// allowedSources is the event-level allowlist. This check is deliberately
// separate from the transport gate's configurable allowlist: even a request
// that passed the gate must declare a source the ingest contract names.
var allowedSources = map[contract.Source]struct{}{
	contract.SourceExclusivity: {},
	contract.SourceSova:        {},
	contract.SourceNirasovaOS:  {},
	contract.SourceAdmin:       {},
}

// IngestService validates an envelope's semantics and delegates fan-out to
// the router.
type IngestService struct {
	router *egress.Router
	logger *logging.Logger
}

// NewIngestService wires the service to a routing table.
func NewIngestService(router *egress.Router, logger *logging.Logger) *IngestService {
	return &IngestService{router: router, logger: logger}
}

// Ingest accepts a validated envelope for routing or rejects it with a
// typed reason. Checks run in order: source authorization, required
// fields, fan-out. The full fan-out completes before Ingest returns.
func (s *IngestService) Ingest(ctx context.Context, req contract.IngestRequest) (contract.IngestResponse, *contract.Error) {
	event := req.Event

	if _, ok := allowedSources[event.Meta.Source]; !ok {
		metrics.EventsTotal.WithLabelValues(string(event.EventType), "forbidden").Inc()
		return contract.IngestResponse{}, contract.Forbidden(
			"source '" + string(event.Meta.Source) + "' is not allowed to ingest events")
	}

	if event.EventType == "" {
		metrics.EventsTotal.WithLabelValues("", "invalid").Inc()
		return contract.IngestResponse{}, contract.InvalidRequest("event_type is required")
	}
	if event.Merchant.MerchantID == "" {
		metrics.EventsTotal.WithLabelValues(string(event.EventType), "invalid").Inc()
		return contract.IngestResponse{}, contract.InvalidRequest("merchant.merchant_id is required")
	}

	routed, err := s.router.Route(ctx, event)
	if err != nil {
		// Handler failures are unexpected by contract. Log the cause here;
		// the caller only ever sees the generic internal error.
		metrics.HandlerFailures.WithLabelValues(string(event.EventType)).Inc()
		s.logger.ErrorContext(ctx, "egress handler failed",
			logging.EventID(event.EventID),
			logging.EventType(string(event.EventType)),
			logging.Error(err),
		)
		return contract.IngestResponse{}, contract.Internal()
	}

	metrics.EventsTotal.WithLabelValues(string(event.EventType), "accepted").Inc()
	s.logger.InfoContext(ctx, "event accepted",
		logging.EventID(event.EventID),
		logging.EventType(string(event.EventType)),
		logging.Source(string(event.Meta.Source)),
		slog.Bool("routed", routed),
	)

	return contract.IngestResponse{
		OK:        true,
		RequestID: event.Meta.RequestID,
		EventID:   event.EventID,
		Routed:    routed,
	}, nil
}
