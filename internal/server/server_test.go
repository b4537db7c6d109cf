package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidshare/internal/api"
	"vidshare/internal/auth"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHandler(t *testing.T) *api.Handler {
	t.Helper()
	store, err := storage.NewJSONRepository(
		filepath.Join(t.TempDir(), "store.json"),
		storage.WithLogger(logging.Discard()),
		storage.WithMetrics(metrics.New()),
	)
	if err != nil {
		t.Fatalf("NewJSONRepository error: %v", err)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: testSecret, Issuer: "vidshare"})
	if err != nil {
		t.Fatalf("NewTokenManager error: %v", err)
	}
	handler := api.NewHandler(store, tokens)
	handler.Logger = logging.Discard()
	return handler
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	srv, err := New(newTestHandler(t), cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return srv
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestNewRejectsMalformedCORSOrigin(t *testing.T) {
	t.Parallel()

	if _, err := New(newTestHandler(t), Config{CORSOrigins: []string{"example.com"}}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
}

func TestHealthzAndMetricsAreServed(t *testing.T) {
	recorder := metrics.New()
	srv := newTestServer(t, Config{Metrics: recorder})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers on healthz")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/healthz"`) {
		t.Fatalf("expected healthz request to be recorded by route, got:\n%s", rec.Body.String())
	}
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
}

func TestServerMountsAPIRoutes(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected categories 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous session 401, got %d", rec.Code)
	}
}

func TestRealtimeHandlerMounted(t *testing.T) {
	called := false
	srv := newTestServer(t, Config{Realtime: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	if !called || rec.Code != http.StatusTeapot {
		t.Fatalf("expected realtime handler to serve /api/ws, got %d", rec.Code)
	}
}

func TestAuditLogsAuthenticatedMutations(t *testing.T) {
	var buf bytes.Buffer
	audit := slog.New(slog.NewJSONHandler(&buf, nil))
	srv := newTestServer(t, Config{AuditLogger: audit})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "auditor",
		"email":    "auditor@example.com",
		"password": "correct horse",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected signup 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode signup: %v", err)
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("X-Request-Id", "audit-req")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected logout 204, got %d", rec.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one audit line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "audit" || entry["path"] != "/api/auth/logout" {
		t.Fatalf("unexpected audit entry %v", entry)
	}
	if entry["user_id"] != session.User.ID {
		t.Fatalf("expected audit user %s, got %v", session.User.ID, entry["user_id"])
	}
	if entry["request_id"] != "audit-req" {
		t.Fatalf("expected audit request id, got %v", entry["request_id"])
	}

	buf.Reset()
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected reads to skip the audit log, got %q", buf.String())
	}
}

func TestShouldAudit(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/videos", true},
		{http.MethodDelete, "/api/comments/1", true},
		{http.MethodGet, "/api/videos", false},
		{http.MethodOptions, "/api/videos", false},
		{http.MethodPost, "/healthz", false},
	}
	for _, tc := range cases {
		if got := shouldAudit(httptest.NewRequest(tc.method, tc.path, nil)); got != tc.want {
			t.Fatalf("shouldAudit(%s %s) = %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestCORSPreflightForAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, Config{CORSOrigins: []string{"https://App.Example.com/"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed for listed origins")
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin to be refused, got %q", got)
	}
}

func TestNormalizeOrigin(t *testing.T) {
	got, err := normalizeOrigin(" HTTPS://Example.COM:8443/path ")
	if err != nil {
		t.Fatalf("normalizeOrigin: %v", err)
	}
	if got != "https://example.com:8443" {
		t.Fatalf("unexpected origin %q", got)
	}
	if _, err := normalizeOrigin("example.com"); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
	if got, err := normalizeOrigin("  "); err != nil || got != "" {
		t.Fatalf("expected blank origin to be ignored, got %q, %v", got, err)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	srv := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hookCalled := make(chan struct{})
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, time.Second, ready, func(context.Context) error {
			close(hookCalled)
			return nil
		})
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr.String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-hookCalled:
	default:
		t.Fatal("expected shutdown hook to run")
	}
}
