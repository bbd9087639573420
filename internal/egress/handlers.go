package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nirasova/ether-gateway/common/audit"
	"github.com/nirasova/ether-gateway/common/logging"
	"github.com/nirasova/ether-gateway/internal/contract"
)

// Publisher is the downstream transport handlers emit to.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// LogPublisher logs instead of publishing. Used when no broker is
// configured so egress routing stays observable in every environment.
type LogPublisher struct {
	Logger *logging.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.Logger.InfoContext(ctx, "egress publish (no broker configured)",
		logging.Subject(subject),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// NewQueueHandler returns a handler that publishes the envelope as JSON to
// subject. Marshal failures and publish failures are fatal for the event's
// fan-out.
func NewQueueHandler(pub Publisher, subject string) Handler {
	return func(ctx context.Context, event contract.Envelope) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal envelope %s: %w", event.EventID, err)
		}
		if err := pub.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publish %s to %s: %w", event.EventID, subject, err)
		}
		return nil
	}
}

// NewAuditHandler returns a handler that writes a signed audit record for
// the event. The signature covers event id, emission time, source and
// payload, so the trail is tamper-evident.
func NewAuditHandler(signer *audit.EventSigner, logger *logging.Logger) Handler {
	return func(ctx context.Context, event contract.Envelope) error {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", event.EventID, err)
		}
		signature := signer.Sign(event.EventID, event.Meta.EmittedAt.Time, string(event.Meta.Source), payload)
		logger.InfoContext(ctx, "audit",
			logging.EventID(event.EventID),
			logging.EventType(string(event.EventType)),
			logging.Source(string(event.Meta.Source)),
			slog.String("merchant_id", event.Merchant.MerchantID),
			slog.String("environment", string(event.Meta.Environment)),
			slog.String("signature", signature),
		)
		return nil
	}
}
