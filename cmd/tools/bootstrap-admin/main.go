// Command bootstrap-admin seeds or promotes an administrator account in the
// datastore.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/storage"
)

func main() {
	var (
		jsonPath    string
		postgresDSN string
		username    string
		email       string
		displayName string
		password    string
	)

	flag.StringVar(&jsonPath, "json", "", "Path to the JSON datastore")
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.StringVar(&username, "username", "", "Username for the admin account")
	flag.StringVar(&email, "email", "", "Email address for the admin account")
	flag.StringVar(&displayName, "name", "Administrator", "Display name for a new admin account")
	flag.StringVar(&password, "password", "", "Password for the admin account")
	flag.Parse()

	if jsonPath == "" && postgresDSN == "" {
		fatalf("either --json or --postgres-dsn must be provided")
	}
	if jsonPath != "" && postgresDSN != "" {
		fatalf("only one datastore option may be provided")
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" {
		fatalf("--username and --email are required")
	}
	if len(password) < 8 {
		fatalf("--password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openRepository(ctx, jsonPath, postgresDSN)
	if err != nil {
		fatalf("open datastore: %v", err)
	}
	defer repo.Close()

	user, created, err := bootstrapAdmin(repo, storage.CreateUserParams{
		Username:    strings.TrimSpace(username),
		Email:       strings.TrimSpace(email),
		DisplayName: strings.TrimSpace(displayName),
		Password:    password,
	})
	if err != nil {
		fatalf("bootstrap admin: %v", err)
	}

	state := "promoted"
	if created {
		state = "created"
	}
	fmt.Printf("Admin user %s (%s) %s successfully.\n", user.Username, user.Email, state)
	fmt.Println("Remember to rotate this password after the first login.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openRepository(ctx context.Context, jsonPath, postgresDSN string) (storage.Repository, error) {
	if jsonPath != "" {
		return storage.NewJSONRepository(jsonPath)
	}
	return storage.NewPostgresRepository(ctx, postgresDSN)
}

// bootstrapAdmin creates the account when neither the username nor the email
// is taken. An existing account found by either is promoted and its password
// reset; a username and email naming two different accounts is an error.
func bootstrapAdmin(repo storage.Repository, params storage.CreateUserParams) (models.User, bool, error) {
	byName, nameTaken := repo.FindUserByUsername(params.Username)
	byEmail, emailTaken := repo.FindUserByEmail(params.Email)
	if nameTaken && emailTaken && byName.ID != byEmail.ID {
		return models.User{}, false, errors.New("username and email belong to different accounts")
	}

	existing, found := byName, nameTaken
	if !found {
		existing, found = byEmail, emailTaken
	}
	if !found {
		user, err := repo.CreateUser(params)
		if err != nil {
			return models.User{}, false, err
		}
		user, err = repo.GrantAdmin(user.ID)
		if err != nil {
			return models.User{}, false, err
		}
		return user, true, nil
	}

	admin, err := repo.GrantAdmin(existing.ID)
	if err != nil {
		return models.User{}, false, err
	}
	password := params.Password
	updated, err := repo.UpdateUser(admin.ID, admin.ID, storage.UserUpdate{Password: &password})
	if err != nil {
		return models.User{}, false, err
	}
	return updated, false, nil
}
