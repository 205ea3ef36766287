package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"), mark("c"))(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("order = %v, want a,b,c", order)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "upstream-42", true},
		{"oversized replaced", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("got %q, want %q", got, tt.incoming)
			}
			if !tt.keep && len(got) != 36 {
				t.Errorf("got %q, want a uuid", got)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	h := CORS(config.SecurityConfig{AllowedOrigins: []string{"https://ok.example"}})(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed", "GET", "https://ok.example", "https://ok.example", http.StatusOK},
		{"denied", "GET", "https://evil.example", "", http.StatusOK},
		{"preflight", "OPTIONS", "https://ok.example", "https://ok.example", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/kpis", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders()(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 2})
	h := RateLimit(limiter, discardLogger())(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "192.0.2.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: false, RateLimitRPS: 1, RateLimitBurst: 1})
	for range 10 {
		if !limiter.Allow("192.0.2.1") {
			t.Fatal("disabled limiter refused a request")
		}
	}
	if limiter.Clients() != 0 {
		t.Errorf("disabled limiter tracked %d clients", limiter.Clients())
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 10, RateLimitBurst: 10})
	limiter.Allow("192.0.2.1")
	limiter.Allow("192.0.2.2")

	if n := limiter.Sweep(time.Hour); n != 0 {
		t.Errorf("swept %d fresh clients", n)
	}
	if n := limiter.Sweep(-time.Second); n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
	if limiter.Clients() != 0 {
		t.Errorf("clients = %d after sweep", limiter.Clients())
	}
}

func TestTrustedProxy(t *testing.T) {
	h := TrustedProxy(config.SecurityConfig{TrustedProxies: []string{"127.0.0.1", "10.0.0.0/8"}})

	tests := []struct {
		name   string
		remote string
		keep   bool
	}{
		{"exact address", "127.0.0.1:5000", true},
		{"inside range", "10.20.30.40:5000", true},
		{"untrusted", "203.0.113.9:5000", false},
		{"garbage", "not-an-addr", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var xff string
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				xff = r.Header.Get("X-Forwarded-For")
			})
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", "198.51.100.7")
			h(inner).ServeHTTP(httptest.NewRecorder(), req)

			if got := xff != ""; got != tt.keep {
				t.Errorf("kept forwarded header = %v, want %v", got, tt.keep)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ip := getClientIP(req); ip != "192.0.2.1" {
		t.Errorf("ip = %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if ip := getClientIP(req); ip != "198.51.100.7" {
		t.Errorf("ip = %q", ip)
	}
}

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/kpis", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return mux
}

func TestMetrics(t *testing.T) {
	m := observability.NewMetrics()
	mux := testMux()
	h := Metrics(m, mux)(mux)

	for _, path := range []string{"/api/kpis?year=2016", "/api/kpis", "/boom", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`sales_dashboard_http_requests_total{code="200",method="GET",route="GET /api/kpis"} 2`,
		`sales_dashboard_http_requests_total{code="503",method="GET",route="GET /boom"} 1`,
		`sales_dashboard_http_requests_total{code="404",method="GET",route="unmatched"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
	if v := testutil.ToFloat64(m.InFlight()); v != 0 {
		t.Errorf("in flight = %v after requests finished", v)
	}
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	mux := testMux()
	h := Chain(RequestID(), Tracing(mux))(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/kpis", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "GET /api/kpis" {
		t.Errorf("name = %q", spans[0].Name())
	}
	if spans[0].Status().Code.String() != "Unset" {
		t.Errorf("ok request status = %v", spans[0].Status().Code)
	}
	if spans[1].Status().Code.String() != "Error" {
		t.Errorf("503 status = %v, want Error", spans[1].Status().Code)
	}

	var hasID bool
	for _, a := range spans[0].Attributes() {
		if a.Key == "request.id" && a.Value.AsString() != "" {
			hasID = true
		}
	}
	if !hasID {
		t.Error("span has no request.id attribute")
	}
}
