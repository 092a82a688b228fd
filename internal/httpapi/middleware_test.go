package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub.org/internal/obs"
)

func TestRequestID(t *testing.T) {
	var inCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inCtx = requestIDFrom(r)
		w.WriteHeader(http.StatusOK)
	}))

	// Generated when absent.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rr.Header().Get(requestIDHeader); got == "" || got != inCtx {
		t.Fatalf("generated id not propagated: header=%q ctx=%q", got, inCtx)
	}

	// Echoed when the client supplies one.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIDHeader, "client-supplied-id")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get(requestIDHeader) != "client-supplied-id" || inCtx != "client-supplied-id" {
		t.Fatalf("client id not echoed: header=%q ctx=%q", rr.Header().Get(requestIDHeader), inCtx)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(okHandler(), 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request must pass: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatal("missing Retry-After header")
	}
	if decodeBody(t, rr)["code"] != "RATE_LIMITED" {
		t.Fatal("expected RATE_LIMITED code")
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("separate client throttled: %d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS(okHandler())

	// Preflight from a local SPA origin.
	r := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("local origin not allowed")
	}

	// Foreign origins receive no allow header.
	r = httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	r.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin must not be allowed")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4321"
	if got := clientIP(r); got != "192.0.2.7" {
		t.Fatalf("clientIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("clientIP with XFF = %q", got)
	}
}

func TestLoggingJSONEmitsStructuredLine(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	h := LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	r := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "request_complete" || entry["method"] != "GET" || entry["path"] != "/v1/info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["status"].(float64) != float64(http.StatusTeapot) {
		t.Fatalf("status not captured: %v", entry["status"])
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := MaxBodyBytes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := decodeJSON(r, &v); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	}), 16)

	big := bytes.NewReader(append([]byte(`{"pad":"`), append(bytes.Repeat([]byte("x"), 64), []byte(`"}`)...)...))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", big))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized body must be rejected: %d", rr.Code)
	}
}
