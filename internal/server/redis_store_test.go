package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisStore(t *testing.T) (*redisLoginStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisLoginStore(client, time.Second), mr
}

func TestRedisLoginStoreCountsWithinWindow(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := store.Allow(ctx, "vidshare:login:test", 2, time.Minute)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
	}
	allowed, retryAfter, err := store.Allow(ctx, "vidshare:login:test", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third attempt to be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retry after %v", retryAfter)
	}
	if ttl := mr.TTL("vidshare:login:test"); ttl != time.Minute {
		t.Fatalf("expected window expiry on key, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	allowed, _, err = store.Allow(ctx, "vidshare:login:test", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatal("expected counter to reset after the window")
	}
}

func TestRedisLoginStoreSurfacesErrors(t *testing.T) {
	store, mr := newMiniredisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.SetError("LOADING")
	if _, _, err := store.Allow(context.Background(), "vidshare:login:test", 1, time.Minute); err == nil {
		t.Fatal("expected error while redis is failing")
	}
}

func TestServerUsesRedisForLoginLimits(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := newTestServer(t, Config{RateLimit: RateLimitConfig{
		LoginLimit:  1,
		LoginWindow: time.Minute,
		RedisAddr:   mr.Addr(),
	}})
	t.Cleanup(func() { _ = srv.Close() })

	if rec := loginAttempt(t, srv, "192.0.2.30:1000"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected first attempt to reach the handler, got %d", rec.Code)
	}
	rec := loginAttempt(t, srv, "192.0.2.30:1000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected redis backed limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if got := mr.Exists("vidshare:login:192.0.2.30"); !got {
		t.Fatal("expected the login counter in redis")
	}
}
