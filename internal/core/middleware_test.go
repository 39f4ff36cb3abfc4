package core

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voltsite/internal/config"
	"voltsite/internal/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func TestRecoverer(t *testing.T) {
	s := testServer(t)
	handler := s.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-panic"))
	handler.ServeHTTP(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
	body := w.Body.String()
	if !strings.Contains(body, string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("body missing error code: %s", body)
	}
	if !strings.Contains(body, "req-panic") {
		t.Errorf("body missing request ID: %s", body)
	}
	if strings.Contains(body, "handler exploded") {
		t.Error("panic detail leaked to the client")
	}
}

func TestRecoverer_PassThrough(t *testing.T) {
	s := testServer(t)
	handler := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Result().StatusCode != http.StatusTeapot {
		t.Errorf("expected status passthrough, got %d", w.Result().StatusCode)
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	handler := ContextTimeoutMiddleware(50 * time.Millisecond)(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			_, deadlineSet = r.Context().Deadline()
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !deadlineSet {
		t.Error("expected a context deadline on the request")
	}
}

func TestRequestIDMiddleware_Generates(t *testing.T) {
	var ctxID string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if ctxID == "" {
		t.Fatal("no request ID in context")
	}
	if got := w.Header().Get("X-Request-Id"); got != ctxID {
		t.Errorf("header ID %q differs from context ID %q", got, ctxID)
	}
	if len(ctxID) != 32 {
		t.Errorf("generated ID %q not 32 hex chars", ctxID)
	}
}

func TestRequestIDMiddleware_PropagatesIncoming(t *testing.T) {
	var ctxID string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "client-supplied-id")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if ctxID != "client-supplied-id" {
		t.Errorf("context ID = %q, want the incoming header value", ctxID)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	s := testServer(t)
	handler := s.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestResponseCapture(t *testing.T) {
	w := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusAccepted)
	rc.WriteHeader(http.StatusInternalServerError) // second call ignored for capture
	if rc.statusCode != http.StatusAccepted {
		t.Errorf("captured status = %d, want 202", rc.statusCode)
	}

	rc2 := &responseCapture{ResponseWriter: httptest.NewRecorder()}
	if _, err := rc2.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rc2.statusCode != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rc2.statusCode)
	}
	if rc2.Unwrap() == nil {
		t.Error("Unwrap() returned nil")
	}
}

func TestRequestLogger_DoesNotInterfere(t *testing.T) {
	handler := RequestLogger(slog.New(slog.DiscardHandler))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("nope"))
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	if w.Body.String() != "nope" {
		t.Errorf("body = %q", w.Body.String())
	}
}
