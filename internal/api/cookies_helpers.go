package api

import (
	"net/http"
	"strings"
	"time"
)

const sessionCookieName = "vidshare_session"

// SessionCookiePolicy shapes the cookie that mirrors the bearer token for
// browser clients. Secure is set on HTTPS requests, including those a proxy
// forwarded as HTTPS, or always when AlwaysSecure is true.
type SessionCookiePolicy struct {
	SameSite     http.SameSite
	AlwaysSecure bool
	Domain       string
}

func DefaultSessionCookiePolicy() SessionCookiePolicy {
	return SessionCookiePolicy{SameSite: http.SameSiteStrictMode}
}

// cookie builds the session cookie; an empty value produces a deletion.
func (p SessionCookiePolicy) cookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	sameSite := p.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteStrictMode
	}
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   p.AlwaysSecure || isSecureRequest(r),
		SameSite: sameSite,
	}
	if value == "" {
		c.Expires = time.Unix(0, 0).UTC()
		c.MaxAge = -1
		return c
	}
	c.Expires = expires.UTC()
	c.MaxAge = max(int(time.Until(expires).Seconds()), 0)
	return c
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time, policy SessionCookiePolicy) {
	if token != "" {
		http.SetCookie(w, policy.cookie(r, token, expires))
	}
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request, policy SessionCookiePolicy) {
	http.SetCookie(w, policy.cookie(r, "", time.Time{}))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	setSessionCookie(w, r, token, expires, h.SessionCookiePolicy)
}

// ClearSessionCookie expires the session cookie if the request carried one.
func (h *Handler) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(sessionCookieName); err == nil {
		clearSessionCookie(w, r, h.SessionCookiePolicy)
	}
}

func isSecureRequest(r *http.Request) bool {
	switch {
	case r == nil:
		return false
	case r.TLS != nil:
		return true
	case r.URL != nil && strings.EqualFold(r.URL.Scheme, "https"):
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
