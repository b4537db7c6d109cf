package api

import (
	"errors"
	"net/http"

	"vidshare/internal/models"
	"vidshare/internal/storage"
)

var errChannelNotFound = errors.New("channel not found")

type createPlaylistRequest struct {
	Title       string         `json:"title" validate:"required,max=100"`
	Description string         `json:"description" validate:"max=5000"`
	Privacy     models.Privacy `json:"privacy" validate:"omitempty,oneof=public unlisted private"`
}

type playlistVideoRequest struct {
	VideoID string `json:"videoId" validate:"required"`
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (h *Handler) ListMyPlaylists(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, truncate(h.Store.ListPlaylists(user.ID, user.ID), 0))
}

// ListUserPlaylists lists another user's playlists as the caller may see them.
func (h *Handler) ListUserPlaylists(w http.ResponseWriter, r *http.Request) {
	ownerID := pathID(r, "id")
	if _, exists := h.Store.GetUser(ownerID); !exists {
		writeError(w, http.StatusNotFound, errors.New("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, truncate(h.Store.ListPlaylists(ownerID, ViewerID(r)), 0))
}

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createPlaylistRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	playlist, err := h.Store.CreatePlaylist(storage.CreatePlaylistParams{
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
		Privacy:     req.Privacy,
	})
	if err != nil {
		h.writeStoreError(w, r, "playlist.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.Store.GetPlaylist(ViewerID(r), pathID(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, "playlist.get", err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeletePlaylist(user.ID, pathID(r, "id")); err != nil {
		h.writeStoreError(w, r, "playlist.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddPlaylistVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req playlistVideoRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	playlist, err := h.Store.AddPlaylistVideo(user.ID, pathID(r, "id"), req.VideoID)
	if err != nil {
		h.writeStoreError(w, r, "playlist.add_video", err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *Handler) RemovePlaylistVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	playlist, err := h.Store.RemovePlaylistVideo(user.ID, pathID(r, "id"), pathID(r, "videoID"))
	if err != nil {
		h.writeStoreError(w, r, "playlist.remove_video", err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, truncate(h.Store.ListCategories(), 0))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createCategoryRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	category, err := h.Store.CreateCategory(user.ID, req.Name)
	if err != nil {
		h.writeStoreError(w, r, "category.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
