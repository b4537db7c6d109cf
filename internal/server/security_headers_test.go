package server

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serveWithSecurity(cfg SecurityConfig, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	securityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rec, req)
	return rec.Result()
}

func TestSecurityHeadersUseDefaults(t *testing.T) {
	t.Parallel()

	res := serveWithSecurity(SecurityConfig{}, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	assertHeaderEquals(t, res, "Content-Security-Policy", defaultContentSecurityPolicy)
	assertHeaderEquals(t, res, "X-Frame-Options", defaultFrameOptions)
	assertHeaderEquals(t, res, "Referrer-Policy", defaultReferrerPolicy)
	assertHeaderEquals(t, res, "Permissions-Policy", defaultPermissionsPolicy)
	assertHeaderEquals(t, res, "X-Content-Type-Options", defaultContentTypeOptions)
	assertHeaderEquals(t, res, "Strict-Transport-Security", "")
}

func TestSecurityHeadersCanBeOverridden(t *testing.T) {
	t.Parallel()

	cfg := SecurityConfig{
		ContentSecurityPolicy: "default-src 'self' https://cdn.example.com",
		FrameOptions:          "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(self)",
	}
	res := serveWithSecurity(cfg, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	assertHeaderEquals(t, res, "Content-Security-Policy", cfg.ContentSecurityPolicy)
	assertHeaderEquals(t, res, "X-Frame-Options", cfg.FrameOptions)
	assertHeaderEquals(t, res, "Referrer-Policy", cfg.ReferrerPolicy)
	assertHeaderEquals(t, res, "Permissions-Policy", cfg.PermissionsPolicy)
	assertHeaderEquals(t, res, "X-Content-Type-Options", defaultContentTypeOptions)
}

func TestSecurityHeadersAnnounceHSTSOnlyOverTLS(t *testing.T) {
	t.Parallel()

	cfg := SecurityConfig{HSTSMaxAge: 24 * time.Hour}
	res := serveWithSecurity(cfg, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	assertHeaderEquals(t, res, "Strict-Transport-Security", "")

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.TLS = &tls.ConnectionState{}
	res = serveWithSecurity(cfg, req)
	assertHeaderEquals(t, res, "Strict-Transport-Security", "max-age=86400; includeSubDomains")
}

func assertHeaderEquals(t *testing.T, res *http.Response, header, want string) {
	t.Helper()
	if got := res.Header.Get(header); got != want {
		t.Fatalf("expected %s %q, got %q", header, want, got)
	}
}
