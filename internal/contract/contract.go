// Package contract defines the event envelope exchanged at the gateway
// boundary, the ingest request/response shapes, and the error taxonomy.
//
// Envelopes are value types: they pass through the router by value and
// every enrichment helper returns a fresh copy with a cloned payload map,
// so no downstream handler can mutate what another handler sees.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies an internal caller allowed to emit events.
type Source string

const (
	SourceExclusivity Source = "exclusivity"
	SourceSova        Source = "sova"
	SourceNirasovaOS  Source = "nirasova_os"
	SourceAdmin       Source = "admin"
)

// KnownSources is the closed set of internal caller identities.
var KnownSources = []Source{SourceExclusivity, SourceSova, SourceNirasovaOS, SourceAdmin}

// IsValid reports whether s is one of the known sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceExclusivity, SourceSova, SourceNirasovaOS, SourceAdmin:
		return true
	}
	return false
}

// EventType is the closed set of event names routing is keyed on.
type EventType string

const (
	EventMerchantCreated      EventType = "merchant.created"
	EventMerchantUpdated      EventType = "merchant.updated"
	EventCustomerUpserted     EventType = "customer.upserted"
	EventPurchaseRecorded     EventType = "purchase.recorded"
	EventLoyaltyPolicyUpdated EventType = "loyalty.policy_updated"
	EventLoyaltyLedgerMutated EventType = "loyalty.ledger_mutated"
	EventAIInteraction        EventType = "ai.interaction"
	EventSystemHealth         EventType = "system.health"
	EventSystemAudit          EventType = "system.audit"
)

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	switch t {
	case EventMerchantCreated, EventMerchantUpdated, EventCustomerUpserted,
		EventPurchaseRecorded, EventLoyaltyPolicyUpdated, EventLoyaltyLedgerMutated,
		EventAIInteraction, EventSystemHealth, EventSystemAudit:
		return true
	}
	return false
}

// Environment is the deployment environment an event was emitted from.
type Environment string

const (
	EnvLocal   Environment = "local"
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// IsValid reports whether e is a recognized environment.
func (e Environment) IsValid() bool {
	switch e {
	case EnvLocal, EnvDev, EnvStaging, EnvProd:
		return true
	}
	return false
}

// Platform is the commerce platform a merchant record originates from.
type Platform string

const (
	PlatformShopify Platform = "shopify"
	PlatformSquare  Platform = "square"
	PlatformManual  Platform = "manual"
	PlatformUnknown Platform = "unknown"
)

// IsValid reports whether p is a recognized platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformShopify, PlatformSquare, PlatformManual, PlatformUnknown:
		return true
	}
	return false
}

// Timestamp wraps time.Time so wire timestamps without a zone offset are
// accepted and assumed UTC instead of rejected. All values normalize to UTC.
type Timestamp struct {
	time.Time
}

// timestamp layouts tried in order; the second has no offset (naive).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// UnmarshalJSON parses RFC 3339 timestamps, with or without an offset.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("emitted_at must be a string timestamp")
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON emits the timestamp in RFC 3339 UTC.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339Nano))
}

// Payload is the opaque event body. The gateway does not interpret its
// contents, only requires that it is a JSON object.
type Payload map[string]any

// UnmarshalJSON rejects scalars and arrays; only objects (or null) pass.
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}
	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*p = m
	return nil
}

// Clone returns an independent shallow copy of the payload map.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return Payload(maps.Clone(map[string]any(p)))
}

// MerchantRef attributes an event to exactly one merchant.
type MerchantRef struct {
	MerchantID      string   `json:"merchant_id"`
	Platform        Platform `json:"platform,omitempty"`
	ExternalStoreID string   `json:"external_store_id,omitempty"`
}

// CustomerRef optionally ties an event to a customer of a merchant.
type CustomerRef struct {
	CustomerID string `json:"customer_id"`
	MerchantID string `json:"merchant_id"`
}

// LedgerRef optionally ties an event to a loyalty ledger.
type LedgerRef struct {
	LedgerID string `json:"ledger_id"`
	Domain   string `json:"domain"`
}

// EventMeta carries caller identity and correlation fields inside the
// envelope, distinct from the transport-level request metadata.
type EventMeta struct {
	Source      Source      `json:"source"`
	RequestID   string      `json:"request_id,omitempty"`
	TraceID     string      `json:"trace_id,omitempty"`
	EmittedAt   Timestamp   `json:"emitted_at,omitzero"`
	Environment Environment `json:"environment,omitempty"`
}

// Envelope is the canonical event record accepted at the gateway boundary.
// Construct it through ParseRequest; once built, treat it as immutable and
// use the With helpers for enrichment.
type Envelope struct {
	EventID   string       `json:"event_id,omitempty"`
	EventType EventType    `json:"event_type"`
	Meta      EventMeta    `json:"meta"`
	Merchant  MerchantRef  `json:"merchant"`
	Customer  *CustomerRef `json:"customer,omitempty"`
	Ledger    *LedgerRef   `json:"ledger,omitempty"`
	Payload   Payload      `json:"payload,omitempty"`
}

// WithPayloadValue returns a copy of the envelope whose payload carries an
// extra key. The receiver is left untouched.
func (e Envelope) WithPayloadValue(key string, value any) Envelope {
	out := e
	out.Payload = e.Payload.Clone()
	if out.Payload == nil {
		out.Payload = Payload{}
	}
	out.Payload[key] = value
	return out
}

// IngestRequest is the unit the ingest service consumes: a validated
// envelope plus the caller's optional idempotency key.
type IngestRequest struct {
	Event          Envelope `json:"event"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// IngestResponse acknowledges an accepted event.
type IngestResponse struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id,omitempty"`
	EventID   string `json:"event_id"`
	Routed    bool   `json:"routed"`
}

// NewEventID mints a gateway-assigned event identifier.
func NewEventID() string {
	return "evt_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewRequestID mints a gateway-assigned correlation identifier.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ParseRequest decodes and validates an ingest request body. The body may
// be a bare envelope or wrapped as {"event": ..., "idempotency_key": ...}.
// Decoding is strict: unknown fields are rejected. Every failure is an
// INVALID_REQUEST error, never a panic.
func ParseRequest(body []byte) (IngestRequest, *Error) {
	var probe struct {
		Event json.RawMessage `json:"event"`
	}
	// A lenient probe only decides wrapped vs bare; strictness applies below.
	wrapped := json.Unmarshal(body, &probe) == nil && len(probe.Event) > 0

	var req IngestRequest
	if wrapped {
		if err := decodeStrict(body, &req); err != nil {
			return IngestRequest{}, InvalidRequest(err.Error())
		}
	} else {
		if err := decodeStrict(body, &req.Event); err != nil {
			return IngestRequest{}, InvalidRequest(err.Error())
		}
	}

	req.Event = applyDefaults(req.Event)
	if verr := validate(req.Event); verr != nil {
		return IngestRequest{}, verr
	}
	return req, nil
}

func decodeStrict(body []byte, into any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("malformed envelope: %v", err)
	}
	return nil
}

// applyDefaults fills gateway-assigned fields on a parsed envelope.
func applyDefaults(e Envelope) Envelope {
	if e.EventID == "" {
		e.EventID = NewEventID()
	}
	if e.Meta.RequestID == "" {
		e.Meta.RequestID = NewRequestID()
	}
	if e.Meta.EmittedAt.IsZero() {
		e.Meta.EmittedAt = Timestamp{time.Now().UTC()}
	} else {
		e.Meta.EmittedAt = Timestamp{e.Meta.EmittedAt.UTC()}
	}
	if e.Meta.Environment == "" {
		e.Meta.Environment = EnvDev
	}
	if e.Merchant.Platform == "" {
		e.Merchant.Platform = PlatformUnknown
	}
	return e
}

func validate(e Envelope) *Error {
	if e.EventType == "" {
		return InvalidRequest("event_type is required")
	}
	if !e.EventType.IsValid() {
		return InvalidRequest(fmt.Sprintf("unknown event_type %q", e.EventType))
	}
	if e.Meta.Source == "" {
		return InvalidRequest("meta.source is required")
	}
	if !e.Meta.Source.IsValid() {
		return InvalidRequest(fmt.Sprintf("unknown source %q", e.Meta.Source))
	}
	if !e.Meta.Environment.IsValid() {
		return InvalidRequest(fmt.Sprintf("unknown environment %q", e.Meta.Environment))
	}
	if e.Merchant.MerchantID == "" {
		return InvalidRequest("merchant.merchant_id is required")
	}
	if !e.Merchant.Platform.IsValid() {
		return InvalidRequest(fmt.Sprintf("unknown platform %q", e.Merchant.Platform))
	}
	return nil
}
