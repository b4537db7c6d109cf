package storage

import (
	"cmp"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	"vidshare/internal/models"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000
	minPasswordLength      = 8
	maxDisplayNameLength   = 50
	maxBioLength           = 1000
)

// hashIterations is lowered by tests.
var hashIterations = passwordHashIterations

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// CreateUserParams captures the attributes that can be set when creating a user.
type CreateUserParams struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return foldKey(email)
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// CreateUser registers a new account. The very first account is an admin.
func (s *Storage) CreateUser(params CreateUserParams) (models.User, error) {
	username := normalizeUsername(params.Username)
	if !usernamePattern.MatchString(username) {
		return models.User{}, invalidf("username must be 3-30 characters of a-z, 0-9 or _")
	}
	email := normalizeEmail(params.Email)
	if !validEmail(email) {
		return models.User{}, invalidf("email %q is invalid", params.Email)
	}
	if utf8.RuneCountInString(params.Password) < minPasswordLength {
		return models.User{}, invalidf("password must be at least %d characters", minPasswordLength)
	}
	displayName := cleanText(params.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return models.User{}, invalidf("displayName must be at most %d characters", maxDisplayNameLength)
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created models.User
	err = s.mutate("user.create", func(tx *Tx) error {
		for _, existing := range tx.Users {
			if existing.Username == username {
				return conflictf("username %s already taken", username)
			}
			if existing.Email == email {
				return conflictf("email %s already in use", email)
			}
		}
		created = models.User{
			ID:           newID(),
			Username:     username,
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: passwordHash,
			IsAdmin:      len(tx.Users) == 0,
			CreatedAt:    tx.now,
			UpdatedAt:    tx.now,
		}
		tx.Users.Put(created.ID, created)
		return nil
	})
	return created, err
}

func (s *Storage) GetUser(id string) (models.User, bool) {
	return getRow(s, func(d *dataset) Table[models.User] { return d.Users }, id)
}

func (s *Storage) QueryUsers(pred func(models.User) bool) []models.User {
	return queryRows(s, func(d *dataset) Table[models.User] { return d.Users }, pred)
}

// FindUserByUsername matches case-insensitively.
func (s *Storage) FindUserByUsername(username string) (models.User, bool) {
	normalized := normalizeUsername(username)
	matches := s.QueryUsers(func(u models.User) bool { return u.Username == normalized })
	if len(matches) == 0 {
		return models.User{}, false
	}
	return matches[0], true
}

func (s *Storage) FindUserByEmail(email string) (models.User, bool) {
	normalized := normalizeEmail(email)
	matches := s.QueryUsers(func(u models.User) bool { return u.Email == normalized })
	if len(matches) == 0 {
		return models.User{}, false
	}
	return matches[0], true
}

func (s *Storage) ListUsers() []models.User {
	users := s.QueryUsers(nil)
	slices.SortFunc(users, func(a, b models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return users
}

// AuthenticateUser accepts either the username or the email as identifier.
func (s *Storage) AuthenticateUser(identifier, password string) (models.User, error) {
	if password == "" {
		return models.User{}, invalidf("password is required")
	}
	user, ok := s.FindUserByUsername(identifier)
	if !ok {
		user, ok = s.FindUserByEmail(identifier)
	}
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if user.IsBanned {
		return models.User{}, unauthorizedf("user %s is banned", user.ID)
	}
	return user, nil
}

// UserUpdate represents the fields that can be modified for an existing user.
type UserUpdate struct {
	DisplayName *string
	Email       *string
	Bio         *string
	AvatarURL   *string
	BannerURL   *string
	Password    *string
}

// UpdateUser edits a profile. Only the user themself or an admin may do so.
func (s *Storage) UpdateUser(actorID, id string, update UserUpdate) (models.User, error) {
	var passwordHash string
	if update.Password != nil {
		if utf8.RuneCountInString(*update.Password) < minPasswordLength {
			return models.User{}, invalidf("password must be at least %d characters", minPasswordLength)
		}
		hashed, err := hashPassword(*update.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = hashed
	}

	var updated models.User
	err := s.mutate("user.update", func(tx *Tx) error {
		actor, err := tx.user(actorID)
		if err != nil {
			return err
		}
		user, err := tx.user(id)
		if err != nil {
			return err
		}
		if actor.ID != user.ID && !actor.IsAdmin {
			return unauthorizedf("user %s cannot edit user %s", actor.ID, user.ID)
		}

		if update.DisplayName != nil {
			name := cleanText(*update.DisplayName)
			if name == "" {
				return invalidf("displayName cannot be empty")
			}
			if utf8.RuneCountInString(name) > maxDisplayNameLength {
				return invalidf("displayName must be at most %d characters", maxDisplayNameLength)
			}
			user.DisplayName = name
		}
		if update.Email != nil {
			email := normalizeEmail(*update.Email)
			if !validEmail(email) {
				return invalidf("email %q is invalid", *update.Email)
			}
			for existingID, existing := range tx.Users {
				if existingID != user.ID && existing.Email == email {
					return conflictf("email %s already in use", email)
				}
			}
			user.Email = email
		}
		if update.Bio != nil {
			bio := cleanText(*update.Bio)
			if utf8.RuneCountInString(bio) > maxBioLength {
				return invalidf("bio must be at most %d characters", maxBioLength)
			}
			user.Bio = bio
		}
		if update.AvatarURL != nil {
			user.AvatarURL = strings.TrimSpace(*update.AvatarURL)
		}
		if update.BannerURL != nil {
			user.BannerURL = strings.TrimSpace(*update.BannerURL)
		}
		if passwordHash != "" {
			user.PasswordHash = passwordHash
		}
		user.UpdatedAt = tx.now
		tx.Users.Put(user.ID, user)
		updated = user
		return nil
	})
	return updated, err
}

// SetUserBanned lets an admin ban or unban another user.
func (s *Storage) SetUserBanned(actorID, id string, banned bool) (models.User, error) {
	var updated models.User
	err := s.mutate("user.ban", func(tx *Tx) error {
		actor, err := tx.user(actorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin {
			return unauthorizedf("user %s is not an admin", actor.ID)
		}
		if actorID == id {
			return invalidf("admins cannot ban themselves")
		}
		user, err := tx.user(id)
		if err != nil {
			return err
		}
		user.IsBanned = banned
		user.UpdatedAt = tx.now
		tx.Users.Put(user.ID, user)
		updated = user
		return nil
	})
	return updated, err
}

// GrantAdmin promotes a user without an acting admin, for operator tooling.
func (s *Storage) GrantAdmin(id string) (models.User, error) {
	var updated models.User
	err := s.mutate("user.grant_admin", func(tx *Tx) error {
		user, err := tx.user(id)
		if err != nil {
			return err
		}
		user.IsAdmin = true
		user.IsBanned = false
		user.UpdatedAt = tx.now
		tx.Users.Put(user.ID, user)
		updated = user
		return nil
	})
	return updated, err
}

func (tx *Tx) user(id string) (models.User, error) {
	user, ok := tx.Users.Get(id)
	if !ok {
		return models.User{}, notFound("user", id)
	}
	return user, nil
}

// activeUser loads a user allowed to create content.
func (tx *Tx) activeUser(id string) (models.User, error) {
	user, err := tx.user(id)
	if err != nil {
		return models.User{}, err
	}
	if user.IsBanned {
		return models.User{}, unauthorizedf("user %s is banned", id)
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, hashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", hashIterations, encodedSalt, encodedKey), nil
}

func verifyPassword(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify password: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
