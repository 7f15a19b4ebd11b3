package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// CORS middleware tests
// ---------------------------------------------------------------------------

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name            string
		allowedOrigins  []string
		requestOrigin   string
		method          string
		wantStatus      int
		wantAllowOrigin string
		wantVary        string
	}{
		{
			name:            "wildcard allows any origin",
			allowedOrigins:  []string{"*"},
			requestOrigin:   "https://example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:            "specific origin is echoed back",
			allowedOrigins:  []string{"https://app.example.com"},
			requestOrigin:   "https://app.example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://app.example.com",
			wantVary:        "Origin",
		},
		{
			name:            "non-matching origin gets no Allow-Origin header",
			allowedOrigins:  []string{"https://app.example.com"},
			requestOrigin:   "https://evil.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
		{
			name:            "no origin header means no CORS headers",
			allowedOrigins:  []string{"*"},
			requestOrigin:   "",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
		{
			name:            "preflight returns 204",
			allowedOrigins:  []string{"*"},
			requestOrigin:   "https://example.com",
			method:          http.MethodOptions,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "*",
		},
		{
			name:            "preflight with specific origin",
			allowedOrigins:  []string{"https://app.example.com"},
			requestOrigin:   "https://app.example.com",
			method:          http.MethodOptions,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://app.example.com",
			wantVary:        "Origin",
		},
		{
			name:            "empty allowed origins list",
			allowedOrigins:  nil,
			requestOrigin:   "https://example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := corsMiddleware(tt.allowedOrigins)
			handler := mw(inner)

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}

			gotAllowOrigin := rec.Header().Get("Access-Control-Allow-Origin")
			if gotAllowOrigin != tt.wantAllowOrigin {
				t.Errorf("Access-Control-Allow-Origin: got %q, want %q", gotAllowOrigin, tt.wantAllowOrigin)
			}

			if tt.wantVary != "" {
				gotVary := rec.Header().Get("Vary")
				if gotVary != tt.wantVary {
					t.Errorf("Vary: got %q, want %q", gotVary, tt.wantVary)
				}
			}

			// When origin is set and allowed, check CORS method headers are present.
			if tt.requestOrigin != "" && tt.wantAllowOrigin != "" {
				if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods == "" {
					t.Error("expected Access-Control-Allow-Methods to be set")
				}
				if headers := rec.Header().Get("Access-Control-Allow-Headers"); headers == "" {
					t.Error("expected Access-Control-Allow-Headers to be set")
				}
				if maxAge := rec.Header().Get("Access-Control-Max-Age"); maxAge != "86400" {
					t.Errorf("Access-Control-Max-Age: got %q, want 86400", maxAge)
				}
			}
		})
	}
}

func TestCORSMiddleware_PreflightDoesNotCallNext(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	mw := corsMiddleware([]string{"*"})
	handler := mw(inner)

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("preflight OPTIONS should not call the next handler")
	}
}

// ---------------------------------------------------------------------------
// Secure headers middleware tests
// ---------------------------------------------------------------------------

func TestSecureHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := secureHeaders(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":       "DENY",
		"X-XSS-Protection":      "0",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	for header, want := range expectedHeaders {
		got := rec.Header().Get(header)
		if got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Request ID middleware tests
// ---------------------------------------------------------------------------

// ---------------------------------------------------------------------------
// Request ID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame string // expected ID; empty means a fresh UUID
	}{
		{"generates when missing", "", ""},
		{"forwards existing", "my-custom-request-id-12345", "my-custom-request-id-12345"},
		{"trims whitespace", "  some-id-with-spaces  \n", "some-id-with-spaces"},
		{"replaces oversized", strings.Repeat("a", 200), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if captured != got {
				t.Errorf("context ID %q does not match response header ID %q", captured, got)
			}
			if tt.wantSame != "" {
				if got != tt.wantSame {
					t.Errorf("expected ID %q, got %q", tt.wantSame, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("expected generated UUID, got %q", got)
			}
		})
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Metrics middleware tests
// ---------------------------------------------------------------------------

type observation struct {
	method, pattern string
	status          int
}

type fakeObserver struct {
	seen []observation
}

func (f *fakeObserver) ObserveHTTPRequest(method, pattern string, status int, _ float64, _ int) {
	f.seen = append(f.seen, observation{method, pattern, status})
}

func TestMetricsMiddleware_RoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(metricsMiddleware(obs))
	r.Get("/timer/duration/{user}/{date}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/timer/duration/u1/2024-05-01", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/timer/duration/u2/2024-05-02", nil))

	if len(obs.seen) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs.seen))
	}
	for _, o := range obs.seen {
		if o.pattern != "/timer/duration/{user}/{date}" {
			t.Errorf("expected route pattern label, got %q", o.pattern)
		}
		if o.status != http.StatusOK {
			t.Errorf("expected status 200, got %d", o.status)
		}
	}
}

func TestMetricsMiddleware_Unmatched(t *testing.T) {
	obs := &fakeObserver{}
	h := metricsMiddleware(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if len(obs.seen) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs.seen))
	}
	if obs.seen[0].pattern != "unmatched" || obs.seen[0].status != http.StatusTeapot {
		t.Errorf("unexpected observation %+v", obs.seen[0])
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantDB     string
	}{
		{"no pool", nil, http.StatusOK, "connected"},
		{"pool reachable", &fakePinger{}, http.StatusOK, "connected"},
		{"pool down", &fakePinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRouter(RouterDeps{DBPool: tt.db})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decodeMap(t, rec)
			if body["database"] != tt.wantDB {
				t.Errorf("expected database=%s, got %v", tt.wantDB, body["database"])
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Middleware integration via router (secure headers, request ID, CORS)
// ---------------------------------------------------------------------------

func TestRouter_GlobalMiddlewareApplied(t *testing.T) {
	handler := NewRouter(RouterDeps{AllowedOrigins: []string{"https://myapp.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://myapp.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff on router responses")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID to be set on router responses")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://myapp.com" {
		t.Errorf("expected Access-Control-Allow-Origin=https://myapp.com, got %q", got)
	}
}

func TestRouter_PreflightAtAnyPath(t *testing.T) {
	handler := NewRouter(RouterDeps{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/group/create", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS preflight, got %d", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	handler := NewRouter(RouterDeps{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent-path", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}
