package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func listen(t *testing.T) (net.Listener, error) {
	t.Helper()
	return net.Listen("tcp", "127.0.0.1:0")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if _, err := uuid.Parse(seen); err != nil {
			t.Errorf("request id %q is not a uuid", seen)
		}
		if rec.Header().Get("X-Request-ID") != seen {
			t.Errorf("header = %q, context = %q", rec.Header().Get("X-Request-ID"), seen)
		}
	})

	t.Run("echoes client id", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", id)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != id {
			t.Errorf("request id = %q, want %q", seen, id)
		}
	})

	t.Run("replaces garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "not-a-uuid\nInjected: 1")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if _, err := uuid.Parse(seen); err != nil {
			t.Errorf("request id %q is not a uuid", seen)
		}
	})
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "INFO"},
		{"client error", http.StatusBadRequest, "WARN"},
		{"server error", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				AddLogField(r.Context(), "action", "proofread")
				AddLogField(r.Context(), "empty", "")
				w.WriteHeader(tt.status)
			})))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/complete", nil))

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("log output %q: %v", buf.String(), err)
			}
			if line["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", line["level"], tt.wantLevel)
			}
			if line["status"] != float64(tt.status) {
				t.Errorf("status = %v", line["status"])
			}
			if line["action"] != "proofread" {
				t.Errorf("action = %v", line["action"])
			}
			if _, ok := line["empty"]; ok {
				t.Error("empty field was logged")
			}
			if line["request_id"] == "" {
				t.Error("request_id missing")
			}
		})
	}
}

func TestAddError_NoMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	// must not panic without LoggingMiddleware
	AddError(req.Context(), http.ErrAbortHandler)
	AddError(req.Context(), nil)
}
