package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidshare/internal/auth"
	"vidshare/internal/observability/logging"
	"vidshare/internal/ranking"
	"vidshare/internal/realtime"
	"vidshare/internal/storage"
)

const defaultFeedLimit = 50

// EventPublisher pushes room events to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

type Handler struct {
	Store  storage.Repository
	Tokens *auth.TokenManager
	Ranker *ranking.Ranker
	Events EventPublisher
	Logger *slog.Logger

	// FeedLimit caps the limit query parameter on listings.
	FeedLimit           int
	AllowSelfSignup     bool
	SessionCookiePolicy SessionCookiePolicy
}

func NewHandler(store storage.Repository, tokens *auth.TokenManager) *Handler {
	return &Handler{
		Store:               store,
		Tokens:              tokens,
		Ranker:              ranking.New(),
		FeedLimit:           defaultFeedLimit,
		AllowSelfSignup:     true,
		SessionCookiePolicy: DefaultSessionCookiePolicy(),
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		h.Logger = logging.WithComponent(slog.Default(), "api")
	}
	return h.Logger
}

func (h *Handler) ranker() *ranking.Ranker {
	if h.Ranker == nil {
		h.Ranker = ranking.New()
	}
	return h.Ranker
}

func (h *Handler) publish(ctx context.Context, event realtime.Event) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(context.WithoutCancel(ctx), event)
}

// RouteConfig carries the pieces of the /api tree owned by other packages.
type RouteConfig struct {
	// LoginLimiter wraps signup and login.
	LoginLimiter func(http.Handler) http.Handler
	// Realtime serves GET /api/ws when set.
	Realtime http.Handler
	// Middleware runs after authentication for every /api route.
	Middleware []func(http.Handler) http.Handler
}

// Routes mounts the /api tree on r.
func (h *Handler) Routes(r chi.Router, cfg RouteConfig) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Use(cfg.Middleware...)

		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(cfg.LoginLimiter)
			}
			r.Post("/auth/signup", h.Signup)
			r.Post("/auth/login", h.Login)
		})
		r.Get("/auth/session", h.Session)
		r.Post("/auth/logout", h.Logout)

		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Patch("/users/{id}", h.UpdateUser)
		r.Post("/users/{id}/ban", h.BanUser)
		r.Get("/users/{id}/playlists", h.ListUserPlaylists)

		r.Get("/videos", h.ListVideos)
		r.Post("/videos", h.CreateVideo)
		r.Get("/videos/{id}", h.GetVideo)
		r.Patch("/videos/{id}", h.UpdateVideo)
		r.Delete("/videos/{id}", h.DeleteVideo)
		r.Post("/videos/{id}/views", h.RecordView)
		r.Put("/videos/{id}/reaction", h.ReactToVideo)
		r.Get("/videos/{id}/reaction", h.VideoReactionState)
		r.Get("/videos/{id}/comments", h.ListComments)
		r.Post("/videos/{id}/comments", h.CreateComment)
		r.Put("/videos/{id}/progress", h.SaveProgress)
		r.Get("/videos/{id}/progress", h.GetProgress)

		r.Patch("/comments/{id}", h.UpdateComment)
		r.Delete("/comments/{id}", h.DeleteComment)
		r.Put("/comments/{id}/reaction", h.ReactToComment)

		r.Put("/channels/{id}/subscription", h.Subscribe)
		r.Delete("/channels/{id}/subscription", h.Unsubscribe)
		r.Get("/channels/{id}/subscribers", h.ListSubscribers)

		r.Get("/me/subscriptions", h.ListMySubscriptions)
		r.Get("/me/notifications", h.ListNotifications)
		r.Post("/me/notifications/read-all", h.MarkAllNotificationsRead)
		r.Post("/me/notifications/{id}/read", h.MarkNotificationRead)
		r.Get("/me/progress", h.ListProgress)

		r.Get("/playlists", h.ListMyPlaylists)
		r.Post("/playlists", h.CreatePlaylist)
		r.Get("/playlists/{id}", h.GetPlaylist)
		r.Delete("/playlists/{id}", h.DeletePlaylist)
		r.Post("/playlists/{id}/videos", h.AddPlaylistVideo)
		r.Delete("/playlists/{id}/videos/{videoID}", h.RemovePlaylistVideo)

		r.Get("/categories", h.ListCategories)
		r.Post("/categories", h.CreateCategory)

		if cfg.Realtime != nil {
			r.Method(http.MethodGet, "/ws", cfg.Realtime)
		}
	})
}

func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

// parseLimit reads ?limit=, defaulting to and capped by the handler's feed limit.
func (h *Handler) parseLimit(r *http.Request) (int, error) {
	ceiling := h.FeedLimit
	if ceiling <= 0 {
		ceiling = defaultFeedLimit
	}
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return ceiling, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit, nil
}

// truncate caps items at limit and never returns nil, so empty lists encode
// as [].
func truncate[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
