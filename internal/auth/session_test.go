package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) (*TokenManager, *MemoryRevocationStore) {
	t.Helper()
	store := NewMemoryRevocationStore()
	manager, err := NewTokenManager(TokenConfig{
		Secret: testSecret,
		Issuer: "vidshare",
		TTL:    time.Hour,
		Store:  store,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return manager, store
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager(TokenConfig{Secret: "  "}); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	manager, _ := newTestManager(t, clock)

	token, expiresAt, err := manager.Issue("user-1", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := clock.now.Add(time.Hour); !expiresAt.Equal(want.UTC()) {
		t.Fatalf("expected expiry %v, got %v", want, expiresAt)
	}

	claims, err := manager.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" || !claims.Admin {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected token id to be set")
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	manager, _ := newTestManager(t, &fakeClock{now: time.Now()})
	if _, _, err := manager.Issue("", false); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	manager, _ := newTestManager(t, clock)
	token, _, err := manager.Issue("user-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	if _, err := manager.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	manager, _ := newTestManager(t, clock)
	token, _, err := manager.Issue("user-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := manager.Verify(context.Background(), tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered signature to fail, got %v", err)
	}

	other, err := NewTokenManager(TokenConfig{Secret: testSecret, Issuer: "someone-else", Now: clock.Now})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	foreign, _, err := other.Issue("user-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := manager.Verify(context.Background(), foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "vidshare"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := manager.Verify(context.Background(), unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none to fail, got %v", err)
	}

	if _, err := manager.Verify(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
}

func TestRevokeAndPurge(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	manager, store := newTestManager(t, clock)
	ctx := context.Background()

	token, _, err := manager.Issue("user-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := manager.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := manager.Revoke(ctx, claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := manager.Verify(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	if purged, err := manager.PurgeExpired(ctx); err != nil || purged != 0 {
		t.Fatalf("expected nothing purged before expiry, got %d (%v)", purged, err)
	}
	clock.now = clock.now.Add(time.Hour + time.Second)
	purged, err := manager.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one revocation purged, got %d", purged)
	}
	if revoked, _ := store.IsRevoked(ctx, claims.ID); revoked {
		t.Fatal("expected revocation to be gone after purge")
	}
}

func TestRevokeNilClaimsIsNoop(t *testing.T) {
	manager, _ := newTestManager(t, &fakeClock{now: time.Now()})
	if err := manager.Revoke(context.Background(), nil); err != nil {
		t.Fatalf("expected nil claims to be ignored, got %v", err)
	}
	if err := manager.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

type failingRevocationStore struct {
	MemoryRevocationStore
}

func (*failingRevocationStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("store offline")
}

func TestVerifySurfacesStoreErrors(t *testing.T) {
	manager, err := NewTokenManager(TokenConfig{Secret: testSecret, Store: &failingRevocationStore{}})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	token, _, err := manager.Issue("user-1", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := manager.Verify(context.Background(), token); err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected store failure to surface, got %v", err)
	}
}
