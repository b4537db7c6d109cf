package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"vidshare/internal/auth"
	"vidshare/internal/models"
	"vidshare/internal/observability/logging"
)

type contextKey string

const (
	userContextKey   contextKey = "authenticatedUser"
	claimsContextKey contextKey = "tokenClaims"
)

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok
}

// ViewerID returns the authenticated user id or "" for anonymous requests.
func ViewerID(r *http.Request) string {
	if user, ok := UserFromContext(r.Context()); ok {
		return user.ID
	}
	return ""
}

// AuthenticateRequest validates the bearer token on the request and returns
// the user and claims. A request without a token yields errAuthRequired.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, *auth.Claims, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, nil, errAuthRequired
	}
	if h.Tokens == nil {
		return models.User{}, nil, auth.ErrInvalidToken
	}
	claims, err := h.Tokens.Verify(r.Context(), token)
	if err != nil {
		return models.User{}, nil, err
	}
	user, exists := h.Store.GetUser(claims.UserID())
	if !exists {
		return models.User{}, nil, auth.ErrInvalidToken
	}
	return user, claims, nil
}

// Authenticate resolves the caller when a token is present. Anonymous
// requests pass through; handlers that need a user call
// requireAuthenticatedUser.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := h.AuthenticateRequest(r)
		if errors.Is(err, errAuthRequired) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			status := statusForError(err)
			if status >= http.StatusInternalServerError {
				logging.WithContext(r.Context(), h.logger()).Error("token verification failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, errors.New("authentication unavailable"))
				return
			}
			h.ClearSessionCookie(w, r)
			writeError(w, http.StatusUnauthorized, errors.New("invalid or expired session"))
			return
		}
		ctx := ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, claimsContextKey, claims)
		ctx = logging.ContextWithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractToken reads the bearer token from the Authorization header, the
// session cookie, or for websocket upgrades the access_token query parameter.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errAuthRequired)
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.User{}, false
	}
	if !user.IsAdmin {
		writeError(w, http.StatusForbidden, errForbidden)
		return models.User{}, false
	}
	return user, true
}
