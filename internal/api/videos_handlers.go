package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/ranking"
	"vidshare/internal/realtime"
	"vidshare/internal/storage"
)

type createVideoRequest struct {
	Title           string             `json:"title" validate:"required,max=100"`
	Description     string             `json:"description" validate:"max=5000"`
	VideoURL        string             `json:"videoUrl" validate:"required,url"`
	ThumbnailURL    string             `json:"thumbnailUrl" validate:"omitempty,url"`
	DurationSeconds int                `json:"durationSeconds" validate:"gte=0"`
	CategoryID      string             `json:"categoryId"`
	Tags            []string           `json:"tags" validate:"max=15,dive,max=30"`
	Privacy         models.Privacy     `json:"privacy" validate:"omitempty,oneof=public unlisted private"`
	Status          models.VideoStatus `json:"status" validate:"omitempty,oneof=draft scheduled processing published"`
	ScheduledAt     *time.Time         `json:"scheduledAt"`
}

type updateVideoRequest struct {
	Title        *string             `json:"title" validate:"omitempty,max=100"`
	Description  *string             `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL *string             `json:"thumbnailUrl" validate:"omitempty,url"`
	CategoryID   *string             `json:"categoryId"`
	Tags         *[]string           `json:"tags" validate:"omitempty,max=15,dive,max=30"`
	Privacy      *models.Privacy     `json:"privacy" validate:"omitempty,oneof=public unlisted private"`
	Status       *models.VideoStatus `json:"status" validate:"omitempty,oneof=draft scheduled processing published"`
	ScheduledAt  *time.Time          `json:"scheduledAt"`
}

type reactionRequest struct {
	Type models.ReactionType `json:"type" validate:"required,oneof=like dislike"`
}

type progressRequest struct {
	PositionSeconds float64 `json:"positionSeconds" validate:"gte=0"`
	DurationSeconds float64 `json:"durationSeconds" validate:"gte=0"`
}

// ListVideos serves the discovery feed. Without filters, or when mode is
// given, videos are ranked; filtered listings without a mode are newest first.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	filter := storage.VideoFilter{
		ViewerID:   ViewerID(r),
		OwnerID:    strings.TrimSpace(query.Get("owner")),
		CategoryID: strings.TrimSpace(query.Get("category")),
		Tag:        strings.TrimSpace(query.Get("tag")),
		Query:      strings.TrimSpace(query.Get("q")),
	}
	rawMode := strings.TrimSpace(query.Get("mode"))
	filtered := filter.OwnerID != "" || filter.CategoryID != "" || filter.Tag != "" || filter.Query != ""
	videos := h.Store.ListVideos(filter)
	if rawMode == "" && filtered {
		writeJSON(w, http.StatusOK, truncate(videos, limit))
		return
	}

	mode, err := ranking.ParseMode(rawMode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	feed := make([]models.Video, 0, min(limit, len(videos)))
	for video := range h.ranker().Feed(videos, mode) {
		feed = append(feed, video)
		if len(feed) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createVideoRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	video, err := h.Store.CreateVideo(storage.CreateVideoParams{
		OwnerID:         user.ID,
		Title:           req.Title,
		Description:     req.Description,
		VideoURL:        req.VideoURL,
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
		CategoryID:      req.CategoryID,
		Tags:            req.Tags,
		Privacy:         req.Privacy,
		Status:          req.Status,
		ScheduledAt:     req.ScheduledAt,
	})
	if err != nil {
		h.writeStoreError(w, r, "video.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, video)
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.Store.VideoForViewer(ViewerID(r), pathID(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, "video.get", err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req updateVideoRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	video, err := h.Store.UpdateVideo(user.ID, pathID(r, "id"), storage.VideoUpdate{
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		CategoryID:   req.CategoryID,
		Tags:         req.Tags,
		Privacy:      req.Privacy,
		Status:       req.Status,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		h.writeStoreError(w, r, "video.update", err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteVideo(user.ID, pathID(r, "id")); err != nil {
		h.writeStoreError(w, r, "video.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	video, err := h.Store.RecordView(ViewerID(r), pathID(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, "video.view", err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *Handler) ReactToVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	videoID := pathID(r, "id")
	result, err := h.Store.ToggleReaction(user.ID, models.VideoTarget(videoID), req.Type)
	if err != nil {
		h.writeStoreError(w, r, "reaction.toggle", err)
		return
	}
	h.publish(r.Context(), realtime.NewReactionUpdated(videoID, result.Target, result.Likes, result.Dislikes))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) VideoReactionState(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	target := models.VideoTarget(pathID(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{
		"target": target,
		"state":  h.Store.ReactionState(user.ID, target),
	})
}

func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	progress, err := h.Store.SaveProgress(user.ID, pathID(r, "id"), req.PositionSeconds, req.DurationSeconds)
	if err != nil {
		h.writeStoreError(w, r, "progress.save", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	progress, exists := h.Store.GetProgress(user.ID, pathID(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, errors.New("no progress recorded"))
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, truncate(h.Store.ListProgress(user.ID), limit))
}
