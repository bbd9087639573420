package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nirasova/ether-gateway/common/middleware"
)

func captureLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}, &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	return record
}

func TestWithContext_AttachesRequestID(t *testing.T) {
	logger, buf := captureLogger(slog.LevelInfo)

	// Run through the real middleware so the context shape matches production.
	var ctx context.Context
	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	logger.InfoContext(ctx, "hello")

	record := lastRecord(t, buf)
	if record["request_id"] == nil || record["request_id"] == "" {
		t.Errorf("request_id missing from record: %v", record)
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	logger, buf := captureLogger(slog.LevelInfo)
	logger.InfoContext(context.Background(), "hello")

	record := lastRecord(t, buf)
	if _, ok := record["request_id"]; ok {
		t.Error("request_id attached without middleware context")
	}
}

func TestLevelFloor(t *testing.T) {
	logger, buf := captureLogger(slog.LevelWarn)
	logger.InfoContext(context.Background(), "quiet")
	if buf.Len() != 0 {
		t.Errorf("info emitted below the warn floor: %s", buf.String())
	}

	logger.WarnContext(context.Background(), "loud")
	if buf.Len() == 0 {
		t.Error("warn suppressed at warn floor")
	}
}

func TestWith_CarriesAttributes(t *testing.T) {
	logger, buf := captureLogger(slog.LevelInfo)
	logger.With(Service("ether-gateway")).InfoContext(context.Background(), "up")

	record := lastRecord(t, buf)
	if record["service"] != "ether-gateway" {
		t.Errorf("service = %v", record["service"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
