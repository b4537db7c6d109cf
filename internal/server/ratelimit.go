package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	// GlobalRPS caps the whole process; zero disables the global limiter.
	GlobalRPS   float64
	GlobalBurst int
	// PerIP requests are allowed per client address in each PerIPWindow.
	PerIP       int
	PerIPWindow time.Duration
	// LoginLimit caps signup and login attempts per client address.
	LoginLimit  int
	LoginWindow time.Duration
	// RedisAddr shares login counters between instances when set.
	RedisAddr     string
	RedisPassword string
	RedisTimeout  time.Duration
}

type rateLimiter struct {
	global      *rate.Limiter
	perIP       int
	perIPWindow time.Duration
	loginLimit  int
	loginWindow time.Duration
	store       loginStore
	logger      *slog.Logger
}

type loginStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig, store loginStore, logger *slog.Logger) *rateLimiter {
	rl := &rateLimiter{
		perIP:       cfg.PerIP,
		perIPWindow: cfg.PerIPWindow,
		loginLimit:  cfg.LoginLimit,
		loginWindow: cfg.LoginWindow,
		store:       store,
		logger:      logger,
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = max(int(cfg.GlobalRPS), 1)
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	if rl.perIPWindow <= 0 {
		rl.perIPWindow = time.Minute
	}
	if rl.loginWindow <= 0 {
		rl.loginWindow = time.Minute
	}
	return rl
}

func (rl *rateLimiter) globalMiddleware(next http.Handler) http.Handler {
	if rl.global == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.global.Allow() {
			reject(w, http.StatusTooManyRequests, errGlobalLimit)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// perIPMiddleware returns nil when per-client limiting is disabled.
func (rl *rateLimiter) perIPMiddleware() func(http.Handler) http.Handler {
	if rl.perIP <= 0 {
		return nil
	}
	return httprate.Limit(rl.perIP, rl.perIPWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			reject(w, http.StatusTooManyRequests, errClientLimit)
		}),
	)
}

// loginMiddleware guards credential endpoints. Counters live in Redis when a
// store is configured and in process memory otherwise.
func (rl *rateLimiter) loginMiddleware() func(http.Handler) http.Handler {
	if rl.loginLimit <= 0 {
		return nil
	}
	if rl.store == nil {
		return httprate.Limit(rl.loginLimit, rl.loginWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				reject(w, http.StatusTooManyRequests, errLoginLimit)
			}),
		)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "vidshare:login:" + clientIP(r.RemoteAddr)
			allowed, retryAfter, err := rl.store.Allow(r.Context(), key, rl.loginLimit, rl.loginWindow)
			if err != nil {
				loggerWithRequestContext(r.Context(), rl.logger).Error("login rate limiter failure", "error", err)
				reject(w, http.StatusServiceUnavailable, errLimiterFailure)
				return
			}
			if !allowed {
				throttle(w, errLoginLimit, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
