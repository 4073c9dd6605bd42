package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimitBlocksOverLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/pdrs", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pdrs", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client: expected 200, got %d", rec.Code)
	}
}

func TestSensitiveRateScope(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   sensitiveScope
	}{
		{http.MethodPost, "/api/v1/auth/login", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/auth/request-reset", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/auth/mfa/enable", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/pdrs/abc/submit", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/pdrs/abc/mid-year/approve", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/pdrs/abc/calibrate", sensitiveScopeActor},
		{http.MethodGet, "/api/v1/pdrs/abc", sensitiveScopeNone},
		{http.MethodPost, "/api/v1/pdrs/abc/goals", sensitiveScopeNone},
		{http.MethodGet, "/api/v1/auth/login", sensitiveScopeNone},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := sensitiveRateScope(req); got != tc.want {
			t.Errorf("%s %s: got scope %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestAuthEmailKeyFallsBackToIP(t *testing.T) {
	keyFn := AuthEmailOrIPKey("email")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"User@Example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	if key := keyFn(req); key != "email:user@example.com" {
		t.Fatalf("expected lowercased email key, got %q", key)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:9999"
	if key := keyFn(req); key != "10.0.0.9" {
		t.Fatalf("expected IP fallback, got %q", key)
	}
}

func TestExtractJSONFieldRestoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	if got := extractJSONField(req, "email"); got != "a@b.c" {
		t.Fatalf("unexpected field value %q", got)
	}

	// The handler downstream must still be able to decode the payload.
	buf := make([]byte, 64)
	n, _ := req.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), `"password":"x"`) {
		t.Fatal("body was not restored after field extraction")
	}
}
