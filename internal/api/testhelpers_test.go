package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"vidshare/internal/auth"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/ranking"
	"vidshare/internal/realtime"
	"vidshare/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event realtime.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) last(t *testing.T) realtime.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("expected a published event")
	}
	return p.events[len(p.events)-1]
}

type testEnv struct {
	handler *Handler
	store   storage.Repository
	events  *recordingPublisher
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	recorder := metrics.New()
	store, err := storage.NewJSONRepository(
		filepath.Join(t.TempDir(), "store.json"),
		storage.WithMetrics(recorder),
		storage.WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("NewJSONRepository: %v", err)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: testSecret, Issuer: "vidshare"})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	handler := NewHandler(store, tokens)
	handler.Ranker = ranking.New(ranking.WithMetrics(recorder))
	handler.Logger = logging.Discard()
	events := &recordingPublisher{}
	handler.Events = events

	router := chi.NewRouter()
	router.Get("/healthz", handler.Health)
	handler.Routes(router, RouteConfig{})
	return &testEnv{handler: handler, store: store, events: events, router: router}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// signup registers username and returns the session token and user id.
func (e *testEnv) signup(t *testing.T, username string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "supersecret",
	})
	expectStatus(t, rec, http.StatusCreated)
	resp := decodeBody[authResponse](t, rec)
	if resp.Token == "" {
		t.Fatal("expected token in signup response")
	}
	return resp.Token, resp.User.ID
}

func (e *testEnv) createVideo(t *testing.T, token string, body map[string]any) string {
	t.Helper()
	if _, ok := body["videoUrl"]; !ok {
		body["videoUrl"] = "https://cdn.example.com/v.mp4"
	}
	rec := e.do(t, http.MethodPost, "/api/videos", token, body)
	expectStatus(t, rec, http.StatusCreated)
	return decodeBody[struct {
		ID string `json:"id"`
	}](t, rec).ID
}
