// Package meta extracts caller identity and correlation fields from
// transport headers. Extraction is pure and never fails; missing headers
// simply yield empty fields, and enforcement belongs to later stages.
package meta

import (
	"net/http"
	"strings"
)

// Header names used by internal callers.
const (
	HeaderSource         = "X-Ether-Source"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// Meta holds per-request caller fields. Lifetime is one request.
type Meta struct {
	Source         string
	RequestID      string
	IdempotencyKey string
}

// Extract reads the caller headers, trimming whitespace. Empty strings
// are treated as absent.
func Extract(r *http.Request) Meta {
	return Meta{
		Source:         strings.TrimSpace(r.Header.Get(HeaderSource)),
		RequestID:      strings.TrimSpace(r.Header.Get(HeaderRequestID)),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	}
}
