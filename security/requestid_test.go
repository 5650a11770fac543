package security

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("uuid.Parse(%q) error = %v", id1, err)
	}
	if id1 == id2 {
		t.Error("GenerateRequestID() returned the same ID twice")
	}
	if !isValidRequestID(id1) {
		t.Errorf("generated ID %q fails validation", id1)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "abc-123")
	if got := GetRequestID(ctx); got != "abc-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "abc-123")
	}
}

func TestIsValidRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "uuid", id: "550e8400-e29b-41d4-a716-446655440000", want: true},
		{name: "underscores", id: "req_1_2", want: true},
		{name: "max length", id: strings.Repeat("a", 128), want: true},
		{name: "empty", id: "", want: false},
		{name: "too long", id: strings.Repeat("a", 129), want: false},
		{name: "CRLF injection", id: "abc\r\nSet-Cookie: x=y", want: false},
		{name: "spaces", id: "abc def", want: false},
		{name: "html", id: "<script>", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidRequestID(tt.id); got != tt.want {
				t.Errorf("isValidRequestID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		upstreamID string
		wantKept   bool
	}{
		{name: "no upstream ID", upstreamID: "", wantKept: false},
		{name: "valid upstream ID", upstreamID: "lb-request-42", wantKept: true},
		{name: "invalid upstream ID", upstreamID: "bad id;", wantKept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.upstreamID != "" {
				req.Header.Set(RequestIDHeader, tt.upstreamID)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response has no request ID header")
			}
			if got != seen {
				t.Errorf("context ID = %q, header ID = %q", seen, got)
			}
			if tt.wantKept && got != tt.upstreamID {
				t.Errorf("request ID = %q, want upstream %q", got, tt.upstreamID)
			}
			if !tt.wantKept && got == tt.upstreamID {
				t.Errorf("request ID %q should have been replaced", got)
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LoggerFromContext(WithRequestID(context.Background(), "req-9"), logger).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-9") {
		t.Errorf("log output missing request_id: %s", buf.String())
	}

	buf.Reset()
	LoggerFromContext(context.Background(), logger).Info("hello")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("log output should not carry request_id: %s", buf.String())
	}
}
