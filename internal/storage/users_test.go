package storage

import (
	"errors"
	"testing"
)

func TestCreateUserFirstAccountIsAdmin(t *testing.T) {
	store := newTestStore(t)
	first := mustCreateUser(t, store, "first")
	second := mustCreateUser(t, store, "second")
	if !first.IsAdmin {
		t.Fatalf("expected first user to be admin")
	}
	if second.IsAdmin {
		t.Fatalf("expected second user not to be admin")
	}
	if first.PasswordHash == "" || first.PasswordHash == "correct-horse" {
		t.Fatalf("expected hashed password, got %q", first.PasswordHash)
	}
}

func TestCreateUserValidatesAndRejectsDuplicates(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "taken")

	cases := []struct {
		name   string
		params CreateUserParams
		want   error
	}{
		{"short username", CreateUserParams{Username: "ab", Email: "ab@example.com", Password: "longenough"}, ErrValidation},
		{"bad characters", CreateUserParams{Username: "bad-name", Email: "bad@example.com", Password: "longenough"}, ErrValidation},
		{"bad email", CreateUserParams{Username: "valid", Email: "nope", Password: "longenough"}, ErrValidation},
		{"short password", CreateUserParams{Username: "valid", Email: "valid@example.com", Password: "short"}, ErrValidation},
		{"duplicate username", CreateUserParams{Username: "TAKEN", Email: "other@example.com", Password: "longenough"}, ErrConflict},
		{"duplicate email", CreateUserParams{Username: "other", Email: "Taken@Example.com", Password: "longenough"}, ErrConflict},
	}
	for _, tc := range cases {
		if _, err := store.CreateUser(tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestAuthenticateUser(t *testing.T) {
	store := newTestStore(t)
	admin := mustCreateUser(t, store, "admin")
	user := mustCreateUser(t, store, "member")

	if got, err := store.AuthenticateUser("member", "correct-horse"); err != nil || got.ID != user.ID {
		t.Fatalf("expected login by username, got %v %v", got.ID, err)
	}
	if got, err := store.AuthenticateUser("MEMBER@example.com", "correct-horse"); err != nil || got.ID != user.ID {
		t.Fatalf("expected login by email, got %v %v", got.ID, err)
	}
	if _, err := store.AuthenticateUser("member", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := store.AuthenticateUser("ghost", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := store.SetUserBanned(admin.ID, user.ID, true); err != nil {
		t.Fatalf("SetUserBanned: %v", err)
	}
	if _, err := store.AuthenticateUser("member", "correct-horse"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected banned login to fail, got %v", err)
	}
}

func TestUpdateUserPermissions(t *testing.T) {
	store := newTestStore(t)
	admin := mustCreateUser(t, store, "admin")
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	name := "Alice A."
	updated, err := store.UpdateUser(alice.ID, alice.ID, UserUpdate{DisplayName: &name})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.DisplayName != name {
		t.Fatalf("expected display name %q, got %q", name, updated.DisplayName)
	}
	if _, err := store.UpdateUser(bob.ID, alice.ID, UserUpdate{DisplayName: &name}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for other user, got %v", err)
	}
	bio := "moderated"
	if _, err := store.UpdateUser(admin.ID, alice.ID, UserUpdate{Bio: &bio}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	email := "bob@example.com"
	if _, err := store.UpdateUser(alice.ID, alice.ID, UserUpdate{Email: &email}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken email, got %v", err)
	}
	password := "new-password"
	if _, err := store.UpdateUser(alice.ID, alice.ID, UserUpdate{Password: &password}); err != nil {
		t.Fatalf("password update: %v", err)
	}
	if _, err := store.AuthenticateUser("alice", password); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
}

func TestSetUserBannedRequiresAdmin(t *testing.T) {
	store := newTestStore(t)
	admin := mustCreateUser(t, store, "admin")
	member := mustCreateUser(t, store, "member")

	if _, err := store.SetUserBanned(member.ID, admin.ID, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := store.SetUserBanned(admin.ID, admin.ID, true); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected self-ban to be rejected, got %v", err)
	}
	banned, err := store.SetUserBanned(admin.ID, member.ID, true)
	if err != nil || !banned.IsBanned {
		t.Fatalf("expected member banned, got %+v %v", banned, err)
	}
	if _, err := store.CreateVideo(CreateVideoParams{OwnerID: member.ID, Title: "x", VideoURL: "https://cdn.example.com/x.mp4"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected banned user to be blocked from uploads, got %v", err)
	}
	promoted, err := store.GrantAdmin(member.ID)
	if err != nil || !promoted.IsAdmin || promoted.IsBanned {
		t.Fatalf("expected GrantAdmin to promote and unban, got %+v %v", promoted, err)
	}
}
