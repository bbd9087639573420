package contract

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validBody() string {
	return `{
		"event_type": "purchase.recorded",
		"meta": {"source": "sova"},
		"merchant": {"merchant_id": "m_1", "platform": "shopify"},
		"payload": {"total_cents": 1250}
	}`
}

func TestParseRequest_BareEnvelope(t *testing.T) {
	req, err := ParseRequest([]byte(validBody()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	e := req.Event
	if e.EventType != EventPurchaseRecorded {
		t.Errorf("EventType = %q, want %q", e.EventType, EventPurchaseRecorded)
	}
	if e.Meta.Source != SourceSova {
		t.Errorf("Meta.Source = %q, want %q", e.Meta.Source, SourceSova)
	}
	if e.Merchant.MerchantID != "m_1" {
		t.Errorf("Merchant.MerchantID = %q, want m_1", e.Merchant.MerchantID)
	}
	if e.Payload["total_cents"] == nil {
		t.Error("payload lost in parse")
	}
}

func TestParseRequest_WrappedWithIdempotencyKey(t *testing.T) {
	body := `{"event": ` + validBody() + `, "idempotency_key": "idem-42"}`
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.IdempotencyKey != "idem-42" {
		t.Errorf("IdempotencyKey = %q, want idem-42", req.IdempotencyKey)
	}
	if req.Event.EventType != EventPurchaseRecorded {
		t.Errorf("EventType = %q, want %q", req.Event.EventType, EventPurchaseRecorded)
	}
}

func TestParseRequest_Defaults(t *testing.T) {
	req, err := ParseRequest([]byte(validBody()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	e := req.Event
	if !strings.HasPrefix(e.EventID, "evt_") {
		t.Errorf("EventID = %q, want evt_ prefix", e.EventID)
	}
	if !strings.HasPrefix(e.Meta.RequestID, "req_") {
		t.Errorf("Meta.RequestID = %q, want req_ prefix", e.Meta.RequestID)
	}
	if e.Meta.Environment != EnvDev {
		t.Errorf("Meta.Environment = %q, want dev", e.Meta.Environment)
	}
	if e.Meta.EmittedAt.IsZero() {
		t.Error("Meta.EmittedAt not defaulted")
	}
	if e.Meta.EmittedAt.Location() != time.UTC {
		t.Errorf("Meta.EmittedAt location = %v, want UTC", e.Meta.EmittedAt.Location())
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown event type",
			body: `{"event_type": "merchant.destroyed", "meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1"}}`,
		},
		{
			name: "missing event type",
			body: `{"meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1"}}`,
		},
		{
			name: "unknown source",
			body: `{"event_type": "merchant.created", "meta": {"source": "stranger"}, "merchant": {"merchant_id": "m_1"}}`,
		},
		{
			name: "missing source",
			body: `{"event_type": "merchant.created", "meta": {}, "merchant": {"merchant_id": "m_1"}}`,
		},
		{
			name: "missing merchant id",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova"}, "merchant": {"platform": "shopify"}}`,
		},
		{
			name: "payload is a list",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1"}, "payload": [1, 2]}`,
		},
		{
			name: "payload is a scalar",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1"}, "payload": "nope"}`,
		},
		{
			name: "unknown top-level field",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1"}, "extra": true}`,
		},
		{
			name: "unknown environment",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova", "environment": "qa"}, "merchant": {"merchant_id": "m_1"}}`,
		},
		{
			name: "unknown platform",
			body: `{"event_type": "merchant.created", "meta": {"source": "sova"}, "merchant": {"merchant_id": "m_1", "platform": "etsy"}}`,
		},
		{
			name: "not json",
			body: `not json at all`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			if err == nil {
				t.Fatal("ParseRequest() error = nil, want INVALID_REQUEST")
			}
			if err.Code != CodeInvalidRequest {
				t.Errorf("Code = %q, want %q", err.Code, CodeInvalidRequest)
			}
		})
	}
}

func TestParseRequest_NaiveTimestampAssumedUTC(t *testing.T) {
	body := `{
		"event_type": "merchant.created",
		"meta": {"source": "admin", "emitted_at": "2026-03-01T09:30:00"},
		"merchant": {"merchant_id": "m_9"}
	}`
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if !req.Event.Meta.EmittedAt.Equal(want) {
		t.Errorf("EmittedAt = %v, want %v", req.Event.Meta.EmittedAt.Time, want)
	}
}

func TestParseRequest_OffsetTimestampNormalizedToUTC(t *testing.T) {
	body := `{
		"event_type": "merchant.created",
		"meta": {"source": "admin", "emitted_at": "2026-03-01T09:30:00+02:00"},
		"merchant": {"merchant_id": "m_9"}
	}`
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	got := req.Event.Meta.EmittedAt
	if got.Location() != time.UTC {
		t.Errorf("EmittedAt location = %v, want UTC", got.Location())
	}
	want := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EmittedAt = %v, want %v", got.Time, want)
	}
}

func TestWithPayloadValue_DoesNotMutateOriginal(t *testing.T) {
	req, err := ParseRequest([]byte(validBody()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	original := req.Event
	enriched := original.WithPayloadValue("enriched", true)

	if _, ok := original.Payload["enriched"]; ok {
		t.Error("enrichment leaked into the original envelope")
	}
	if enriched.Payload["enriched"] != true {
		t.Error("enriched copy missing new key")
	}
	if enriched.EventID != original.EventID {
		t.Error("enrichment changed the event id")
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	req, err := ParseRequest([]byte(validBody()))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	data, merr := json.Marshal(req.Event)
	if merr != nil {
		t.Fatalf("Marshal() error = %v", merr)
	}

	var back Envelope
	if uerr := json.Unmarshal(data, &back); uerr != nil {
		t.Fatalf("Unmarshal() error = %v", uerr)
	}
	if back.EventID != req.Event.EventID {
		t.Errorf("EventID = %q, want %q", back.EventID, req.Event.EventID)
	}
	if !back.Meta.EmittedAt.Equal(req.Event.Meta.EmittedAt.Time) {
		t.Errorf("EmittedAt = %v, want %v", back.Meta.EmittedAt.Time, req.Event.Meta.EmittedAt.Time)
	}
}

func TestNewEventID_Unique(t *testing.T) {
	a, b := NewEventID(), NewEventID()
	if a == b {
		t.Error("NewEventID() produced duplicates")
	}
	if !strings.HasPrefix(a, "evt_") {
		t.Errorf("NewEventID() = %q, want evt_ prefix", a)
	}
}
