package api

import (
	"errors"
	"net/http"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/storage"
)

type signupRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=30"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"displayName" validate:"max=50"`
}

type loginRequest struct {
	// Identifier is a username or an email address.
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=50"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Bio         *string `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url"`
	BannerURL   *string `json:"bannerUrl" validate:"omitempty,url"`
	Password    *string `json:"password" validate:"omitempty,min=8,max=128"`
}

type banRequest struct {
	Banned bool `json:"banned"`
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// presentUser strips credentials, and the email address unless the viewer is
// the user or an admin.
func presentUser(user models.User, viewer models.User, hasViewer bool) models.User {
	out := user.Public()
	if !hasViewer || (viewer.ID != user.ID && !viewer.IsAdmin) {
		out.Email = ""
	}
	return out
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	if h.Tokens == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("token issuing is not configured"))
		return
	}
	token, expiresAt, err := h.Tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		h.writeStoreError(w, r, "auth.issue", err)
		return
	}
	h.setSessionCookie(w, r, token, expiresAt)
	writeJSON(w, status, authResponse{Token: token, ExpiresAt: expiresAt, User: user.Public()})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if !h.AllowSelfSignup {
		writeError(w, http.StatusForbidden, errors.New("public signup is disabled"))
		return
	}
	var req signupRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	user, err := h.Store.CreateUser(storage.CreateUserParams{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeStoreError(w, r, "user.create", err)
		return
	}
	h.issueSession(w, r, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	user, err := h.Store.AuthenticateUser(req.Identifier, req.Password)
	if err != nil {
		if statusForError(err) < http.StatusInternalServerError {
			writeError(w, http.StatusUnauthorized, storage.ErrInvalidCredentials)
			return
		}
		h.writeStoreError(w, r, "user.authenticate", err)
		return
	}
	h.issueSession(w, r, http.StatusOK, user)
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	resp := map[string]any{"user": user.Public()}
	if claims, ok := claimsFromContext(r.Context()); ok && claims.ExpiresAt != nil {
		resp["expiresAt"] = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthenticatedUser(w, r); !ok {
		return
	}
	if claims, ok := claimsFromContext(r.Context()); ok && h.Tokens != nil {
		if err := h.Tokens.Revoke(r.Context(), claims); err != nil {
			h.writeStoreError(w, r, "auth.revoke", err)
			return
		}
	}
	clearSessionCookie(w, r, h.SessionCookiePolicy)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	users := h.Store.ListUsers()
	response := make([]models.User, 0, len(users))
	for _, user := range users {
		response = append(response, user.Public())
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	user, exists := h.Store.GetUser(id)
	if !exists {
		user, exists = h.Store.FindUserByUsername(id)
	}
	if !exists {
		writeError(w, http.StatusNotFound, errors.New("user not found"))
		return
	}
	viewer, hasViewer := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, presentUser(user, viewer, hasViewer))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	user, err := h.Store.UpdateUser(actor.ID, pathID(r, "id"), storage.UserUpdate{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
		BannerURL:   req.BannerURL,
		Password:    req.Password,
	})
	if err != nil {
		h.writeStoreError(w, r, "user.update", err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req banRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	user, err := h.Store.SetUserBanned(actor.ID, pathID(r, "id"), req.Banned)
	if err != nil {
		h.writeStoreError(w, r, "user.ban", err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
