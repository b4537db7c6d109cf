package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"vidshare/internal/api"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/serverutil"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr         string
	TLS          TLSConfig
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	RateLimit    RateLimitConfig
	Security     SecurityConfig
	Logger       *slog.Logger
	AuditLogger  *slog.Logger
	Metrics      *metrics.Recorder
	// Realtime is mounted at /api/ws when set.
	Realtime http.Handler
}

type Server struct {
	httpServer  *http.Server
	router      chi.Router
	logger      *slog.Logger
	loginStore  *redisLoginStore
	tlsCertFile string
	tlsKeyFile  string
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("api handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}

	corsHandler, err := corsMiddleware(cfg.CORSOrigins)
	if err != nil {
		return nil, err
	}

	var store *redisLoginStore
	var limiterStore loginStore
	if addr := strings.TrimSpace(cfg.RateLimit.RedisAddr); addr != "" && cfg.RateLimit.LoginLimit > 0 {
		store = newRedisLoginStore(redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RateLimit.RedisPassword,
		}), cfg.RateLimit.RedisTimeout)
		limiterStore = store
	}
	rl := newRateLimiter(cfg.RateLimit, limiterStore, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(requestIDMiddleware(logger, nil))
	router.Use(logging.RequestLogger(logging.RequestLoggerConfig{
		Logger:    logger,
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	router.Use(chimiddleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler {
		return metrics.HTTPMiddleware(recorder, next)
	})
	router.Use(securityHeaders(cfg.Security))
	if corsHandler != nil {
		router.Use(corsHandler)
	}
	router.Use(rl.globalMiddleware)
	if perIP := rl.perIPMiddleware(); perIP != nil {
		router.Use(perIP)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		reject(w, http.StatusNotFound, errNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		reject(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})

	router.Get("/healthz", handler.Health)
	router.Method(http.MethodGet, "/metrics", recorder.Handler())

	routeCfg := api.RouteConfig{
		LoginLimiter: rl.loginMiddleware(),
		Realtime:     cfg.Realtime,
	}
	if cfg.AuditLogger != nil {
		routeCfg.Middleware = append(routeCfg.Middleware, auditMiddleware(cfg.AuditLogger))
	}
	handler.Routes(router, routeCfg)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       durationOr(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      durationOr(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       durationOr(cfg.IdleTimeout, 60*time.Second),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	srv := &Server{
		httpServer:  httpServer,
		router:      router,
		logger:      logger,
		loginStore:  store,
		tlsCertFile: strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
	}
	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return srv, nil
}

// Handler exposes the routed middleware chain.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// shutdownTimeout and runs hooks followed by the server's own cleanup.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration, ready chan<- net.Addr, hooks ...serverutil.ShutdownHook) error {
	hooks = append(hooks, func(context.Context) error { return s.Close() })
	return serverutil.Run(ctx, serverutil.Config{
		Server: s.httpServer,
		TLS: serverutil.TLSConfig{
			CertFile: s.tlsCertFile,
			KeyFile:  s.tlsKeyFile,
		},
		ShutdownTimeout: shutdownTimeout,
		Ready:           ready,
		Logger:          s.logger,
		OnShutdown:      hooks,
	})
}

// Close releases the shared login limiter connection, if any.
func (s *Server) Close() error {
	if s.loginStore == nil {
		return nil
	}
	if err := s.loginStore.Close(); err != nil {
		return fmt.Errorf("close login limiter: %w", err)
	}
	return nil
}

func auditMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := metrics.WrapWriter(w, r)
			start := time.Now()
			next.ServeHTTP(ww, r)
			if !shouldAudit(r) {
				return
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", metrics.StatusOf(ww),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", clientIP(r.RemoteAddr),
			}
			if user, ok := api.UserFromContext(r.Context()); ok {
				fields = append(fields, "user_id", user.ID)
			}
			if requestID, ok := logging.RequestIDFromContext(r.Context()); ok {
				fields = append(fields, "request_id", requestID)
			}
			logger.Info("audit", fields...)
		})
	}
}

func shouldAudit(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
