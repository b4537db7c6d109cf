package api

import (
	"errors"
	"net/http"

	"vidshare/internal/models"
	"vidshare/internal/realtime"
)

type createCommentRequest struct {
	Content  string `json:"content" validate:"required,max=2000"`
	ParentID string `json:"parentId"`
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// commentView pairs a comment with its author's public profile.
type commentView struct {
	models.Comment
	Author *models.User `json:"author,omitempty"`
}

func (h *Handler) withAuthors(comments []models.Comment) []commentView {
	authors := make(map[string]*models.User)
	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		author, seen := authors[comment.AuthorID]
		if !seen {
			if user, ok := h.Store.GetUser(comment.AuthorID); ok {
				public := user.Public()
				public.Email = ""
				author = &public
			}
			authors[comment.AuthorID] = author
		}
		views = append(views, commentView{Comment: comment, Author: author})
	}
	return views
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	videoID := pathID(r, "id")
	if _, err := h.Store.VideoForViewer(ViewerID(r), videoID); err != nil {
		h.writeStoreError(w, r, "comment.list", err)
		return
	}
	writeJSON(w, http.StatusOK, h.withAuthors(h.Store.ListComments(videoID)))
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	comment, err := h.Store.CreateComment(user.ID, pathID(r, "id"), req.ParentID, req.Content)
	if err != nil {
		h.writeStoreError(w, r, "comment.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.withAuthors([]models.Comment{comment})[0])
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req updateCommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	comment, err := h.Store.UpdateComment(user.ID, pathID(r, "id"), req.Content)
	if err != nil {
		h.writeStoreError(w, r, "comment.update", err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	id := pathID(r, "id")
	comment, exists := h.Store.GetComment(id)
	if !exists {
		writeError(w, http.StatusNotFound, errors.New("comment not found"))
		return
	}
	removed, err := h.Store.DeleteComment(user.ID, id)
	if err != nil {
		h.writeStoreError(w, r, "comment.delete", err)
		return
	}
	h.publish(r.Context(), realtime.NewCommentDeleted(comment.VideoID, removed))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReactToComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	id := pathID(r, "id")
	result, err := h.Store.ToggleReaction(user.ID, models.CommentTarget(id), req.Type)
	if err != nil {
		h.writeStoreError(w, r, "reaction.toggle", err)
		return
	}
	if comment, ok := h.Store.GetComment(id); ok {
		h.publish(r.Context(), realtime.NewReactionUpdated(comment.VideoID, result.Target, result.Likes, result.Dislikes))
	}
	writeJSON(w, http.StatusOK, result)
}
