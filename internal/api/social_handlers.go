package api

import (
	"net/http"
	"strconv"

	"vidshare/internal/models"
)

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	subscription, err := h.Store.Subscribe(user.ID, pathID(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, "subscription.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, subscription)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Store.Unsubscribe(user.ID, pathID(r, "id")); err != nil {
		h.writeStoreError(w, r, "subscription.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	channelID := pathID(r, "id")
	if _, exists := h.Store.GetUser(channelID); !exists {
		writeError(w, http.StatusNotFound, errChannelNotFound)
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, truncate(h.Store.ListSubscribers(channelID), limit))
}

func (h *Handler) ListMySubscriptions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, truncate(h.Store.ListSubscriptions(user.ID), 0))
}

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, err := h.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{
		Notifications: truncate(h.Store.ListNotifications(user.ID, unreadOnly), limit),
		Unread:        h.Store.UnreadNotificationCount(user.ID),
	})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	notification, err := h.Store.MarkNotificationRead(user.ID, pathID(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, "notification.read", err)
		return
	}
	writeJSON(w, http.StatusOK, notification)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	marked, err := h.Store.MarkAllNotificationsRead(user.ID)
	if err != nil {
		h.writeStoreError(w, r, "notification.read_all", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}
