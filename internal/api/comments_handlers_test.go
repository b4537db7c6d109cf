package api

import (
	"net/http"
	"strings"
	"testing"

	"vidshare/internal/realtime"
)

func TestCommentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.signup(t, "alice")
	bobToken, _ := env.signup(t, "bob")
	videoID := env.createVideo(t, aliceToken, map[string]any{"title": "Clip"})

	rec := env.do(t, http.MethodPost, "/api/videos/"+videoID+"/comments", bobToken, map[string]string{"content": "  nice one  "})
	expectStatus(t, rec, http.StatusCreated)
	created := decodeBody[commentView](t, rec)
	if created.Content != "nice one" || created.Author == nil || created.Author.Username != "bob" {
		t.Fatalf("unexpected comment %+v", created)
	}

	rec = env.do(t, http.MethodPost, "/api/videos/"+videoID+"/comments", aliceToken, map[string]string{"content": "thanks", "parentId": created.ID})
	expectStatus(t, rec, http.StatusCreated)

	rec = env.do(t, http.MethodGet, "/api/videos/"+videoID+"/comments", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "@example.com") {
		t.Fatal("comment listing leaked author emails")
	}
	if comments := decodeBody[[]commentView](t, rec); len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}

	rec = env.do(t, http.MethodPatch, "/api/comments/"+created.ID, aliceToken, map[string]string{"content": "edited"})
	expectStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, http.MethodPatch, "/api/comments/"+created.ID, bobToken, map[string]string{"content": "edited"})
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPut, "/api/comments/"+created.ID+"/reaction", aliceToken, reactionRequest{Type: "like"})
	expectStatus(t, rec, http.StatusOK)
	if event := env.events.last(t); event.Type != realtime.EventReactionUpdated || event.VideoID != videoID {
		t.Fatalf("expected comment reaction event in the video room, got %+v", event)
	}

	rec = env.do(t, http.MethodDelete, "/api/comments/"+created.ID, aliceToken, nil)
	expectStatus(t, rec, http.StatusNoContent)
	event := env.events.last(t)
	if event.Type != realtime.EventCommentDeleted || len(event.CommentIDs) != 2 {
		t.Fatalf("expected deletion of comment and reply, got %+v", event)
	}

	video, _ := env.store.GetVideo(videoID)
	if video.Comments != 0 {
		t.Fatalf("expected comment counter back at 0, got %d", video.Comments)
	}

	rec = env.do(t, http.MethodDelete, "/api/comments/"+created.ID, aliceToken, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = env.do(t, http.MethodPost, "/api/videos/"+videoID+"/comments", bobToken, map[string]string{"content": ""})
	expectStatus(t, rec, http.StatusBadRequest)
}
