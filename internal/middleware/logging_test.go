package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %v, want GET", entry["method"])
	}
	if entry["path"] != "/api/profile" {
		t.Errorf("path = %v, want /api/profile", entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["bytes"] != float64(8) {
		t.Errorf("bytes = %v, want 8", entry["bytes"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected 'duration_ms' field in log entry")
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id should be omitted without RequestID middleware")
	}
}

// TestLoggingMiddleware_IncludesRequestID はリクエストIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRequestIDMiddleware()(NewLoggingMiddleware(newBufferLogger(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	entry := decodeLogEntry(t, &buf)
	if entry["request_id"] != w.Header().Get(RequestIDHeader) {
		t.Errorf("request_id = %v, want %q", entry["request_id"], w.Header().Get(RequestIDHeader))
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じたログレベルを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNoContent, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		handler := NewLoggingMiddleware(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/profile/next", nil))

		entry := decodeLogEntry(t, &buf)
		if entry["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.level)
		}
		if entry["status"] != float64(tt.status) {
			t.Errorf("status = %v, want %d", entry["status"], tt.status)
		}
	}
}
