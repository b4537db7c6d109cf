package api

import (
	"net/http"
	"testing"

	"vidshare/internal/models"
)

func TestSubscriptionsAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.signup(t, "alice")
	bobToken, bobID := env.signup(t, "bob")

	rec := env.do(t, http.MethodPut, "/api/channels/"+aliceID+"/subscription", bobToken, nil)
	expectStatus(t, rec, http.StatusCreated)
	rec = env.do(t, http.MethodPut, "/api/channels/"+aliceID+"/subscription", bobToken, nil)
	expectStatus(t, rec, http.StatusConflict)
	rec = env.do(t, http.MethodPut, "/api/channels/"+bobID+"/subscription", bobToken, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/api/me/subscriptions", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if subs := decodeBody[[]models.Subscription](t, rec); len(subs) != 1 || subs[0].ChannelID != aliceID {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}
	rec = env.do(t, http.MethodGet, "/api/channels/"+aliceID+"/subscribers", "", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/me/notifications?unread=true", aliceToken, nil)
	expectStatus(t, rec, http.StatusOK)
	inbox := decodeBody[notificationsResponse](t, rec)
	if inbox.Unread != 1 || len(inbox.Notifications) != 1 {
		t.Fatalf("expected one unread subscription notification, got %+v", inbox)
	}

	rec = env.do(t, http.MethodPost, "/api/me/notifications/"+inbox.Notifications[0].ID+"/read", bobToken, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, http.MethodPost, "/api/me/notifications/"+inbox.Notifications[0].ID+"/read", aliceToken, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = env.do(t, http.MethodPost, "/api/me/notifications/read-all", aliceToken, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodDelete, "/api/channels/"+aliceID+"/subscription", bobToken, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = env.do(t, http.MethodDelete, "/api/channels/"+aliceID+"/subscription", bobToken, nil)
	expectStatus(t, rec, http.StatusNotFound)

	alice, _ := env.store.GetUser(aliceID)
	if alice.SubscriberCount != 0 {
		t.Fatalf("expected subscriber count 0, got %d", alice.SubscriberCount)
	}
}

func TestPlaylistsAndCategories(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.signup(t, "alice")
	bobToken, _ := env.signup(t, "bob")
	videoID := env.createVideo(t, aliceToken, map[string]any{"title": "Clip"})

	rec := env.do(t, http.MethodPost, "/api/playlists", aliceToken, map[string]string{"title": "Mine", "privacy": "private"})
	expectStatus(t, rec, http.StatusCreated)
	playlist := decodeBody[models.Playlist](t, rec)

	rec = env.do(t, http.MethodPost, "/api/playlists/"+playlist.ID+"/videos", aliceToken, playlistVideoRequest{VideoID: videoID})
	expectStatus(t, rec, http.StatusOK)
	rec = env.do(t, http.MethodPost, "/api/playlists/"+playlist.ID+"/videos", aliceToken, playlistVideoRequest{VideoID: videoID})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodGet, "/api/playlists/"+playlist.ID, bobToken, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = env.do(t, http.MethodGet, "/api/users/"+aliceID+"/playlists", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if lists := decodeBody[[]models.Playlist](t, rec); len(lists) != 0 {
		t.Fatalf("expected private playlists hidden, got %d", len(lists))
	}

	rec = env.do(t, http.MethodDelete, "/api/playlists/"+playlist.ID+"/videos/"+videoID, aliceToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if decodeBody[models.Playlist](t, rec).Contains(videoID) {
		t.Fatal("expected video removed from playlist")
	}
	rec = env.do(t, http.MethodDelete, "/api/playlists/"+playlist.ID, bobToken, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, http.MethodDelete, "/api/playlists/"+playlist.ID, aliceToken, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = env.do(t, http.MethodGet, "/api/categories", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if categories := decodeBody[[]models.Category](t, rec); len(categories) != 10 {
		t.Fatalf("expected the 10 starter categories, got %d", len(categories))
	}
	rec = env.do(t, http.MethodPost, "/api/categories", bobToken, createCategoryRequest{Name: "Cooking"})
	expectStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, http.MethodPost, "/api/categories", aliceToken, createCategoryRequest{Name: "Cooking"})
	expectStatus(t, rec, http.StatusCreated)
	rec = env.do(t, http.MethodPost, "/api/categories", aliceToken, createCategoryRequest{Name: "cooking"})
	expectStatus(t, rec, http.StatusConflict)
}
