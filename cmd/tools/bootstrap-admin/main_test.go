package main

import (
	"path/filepath"
	"testing"

	"vidshare/internal/storage"
)

func newTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.NewJSONRepository(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewJSONRepository: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestBootstrapAdminCreatesAccount(t *testing.T) {
	repo := newTestRepo(t)

	user, created, err := bootstrapAdmin(repo, storage.CreateUserParams{
		Username:    "root",
		Email:       "root@example.com",
		DisplayName: "Root",
		Password:    "bootstrap-pass",
	})
	if err != nil {
		t.Fatalf("bootstrapAdmin: %v", err)
	}
	if !created || !user.IsAdmin {
		t.Fatalf("expected a new admin, got created=%v admin=%v", created, user.IsAdmin)
	}
	if _, err := repo.AuthenticateUser("root", "bootstrap-pass"); err != nil {
		t.Fatalf("expected new admin to log in: %v", err)
	}
}

func TestBootstrapAdminPromotesExistingAccount(t *testing.T) {
	repo := newTestRepo(t)
	existing, err := repo.CreateUser(storage.CreateUserParams{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "original-pass",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, created, err := bootstrapAdmin(repo, storage.CreateUserParams{
		Username: "someone-else",
		Email:    "alice@example.com",
		Password: "rotated-pass",
	})
	if err != nil {
		t.Fatalf("bootstrapAdmin: %v", err)
	}
	if created || user.ID != existing.ID || !user.IsAdmin {
		t.Fatalf("expected existing account promoted, got %+v created=%v", user, created)
	}
	if _, err := repo.AuthenticateUser("alice", "rotated-pass"); err != nil {
		t.Fatalf("expected rotated password to work: %v", err)
	}
}

func TestBootstrapAdminRejectsSplitIdentity(t *testing.T) {
	repo := newTestRepo(t)
	for _, params := range []storage.CreateUserParams{
		{Username: "alice", Email: "alice@example.com", Password: "password-a"},
		{Username: "bob", Email: "bob@example.com", Password: "password-b"},
	} {
		if _, err := repo.CreateUser(params); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	if _, _, err := bootstrapAdmin(repo, storage.CreateUserParams{
		Username: "alice",
		Email:    "bob@example.com",
		Password: "whatever-pass",
	}); err == nil {
		t.Fatal("expected error when username and email name different users")
	}
}
