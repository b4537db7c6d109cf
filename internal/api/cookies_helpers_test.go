package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not found", name)
	return nil
}

func TestSetSessionCookieDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.TLS = &tls.ConnectionState{}

	setSessionCookie(rec, req, "token", time.Now().Add(time.Hour), DefaultSessionCookiePolicy())

	cookie := findCookie(t, rec.Result().Cookies(), sessionCookieName)
	if cookie.Path != "/" {
		t.Fatalf("expected session cookie Path=/, got %q", cookie.Path)
	}
	if !cookie.HttpOnly {
		t.Fatal("expected session cookie to be HttpOnly by default")
	}
	if !cookie.Secure {
		t.Fatal("expected HTTPS request to set Secure on session cookie")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", cookie.SameSite)
	}
}

func TestSetSessionCookieRespectsForwardedProto(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.Header.Set("X-Forwarded-Proto", "http, https")

	setSessionCookie(rec, req, "token", time.Now().Add(time.Hour), DefaultSessionCookiePolicy())

	cookie := findCookie(t, rec.Result().Cookies(), sessionCookieName)
	if !cookie.Secure {
		t.Fatal("expected Secure cookie when X-Forwarded-Proto includes HTTPS")
	}
}

func TestSessionCookiePolicyForcesSecure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://localhost/api/auth/login", nil)
	policy := SessionCookiePolicy{SameSite: http.SameSiteLaxMode, AlwaysSecure: true, Domain: "example.com"}

	setSessionCookie(rec, req, "token", time.Now().Add(time.Hour), policy)

	cookie := findCookie(t, rec.Result().Cookies(), sessionCookieName)
	if !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected secure lax cookie, got secure=%v samesite=%v", cookie.Secure, cookie.SameSite)
	}
	if cookie.Domain != "example.com" {
		t.Fatalf("expected cookie domain, got %q", cookie.Domain)
	}
}

func TestClearSessionCookieExpiresImmediately(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)

	clearSessionCookie(rec, req, DefaultSessionCookiePolicy())

	cookie := findCookie(t, rec.Result().Cookies(), sessionCookieName)
	if cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Fatalf("expected expired empty cookie, got %+v", cookie)
	}
}

func TestPlainHTTPCookieIsNotSecure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/login", nil)

	setSessionCookie(rec, req, "token", time.Now().Add(time.Hour), SessionCookiePolicy{})

	cookie := findCookie(t, rec.Result().Cookies(), sessionCookieName)
	if cookie.Secure {
		t.Fatal("expected plain HTTP cookie without Secure")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected zero policy to default to SameSite=Strict, got %v", cookie.SameSite)
	}
}
