package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"vidshare/internal/auth"
	"vidshare/internal/realtime"
	"vidshare/internal/storage"
)

type unhealthyPublisher struct {
	recordingPublisher
}

func (*unhealthyPublisher) Ping(context.Context) error {
	return errors.New("realtime bus circuit open")
}

func TestHealthReportsComponents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	health := decodeBody[healthResponse](t, rec)
	if health.Status != "ok" || len(health.Components) != 2 {
		t.Fatalf("unexpected health %+v", health)
	}

	env.handler.Events = &unhealthyPublisher{}
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	health = decodeBody[healthResponse](t, rec)
	if health.Status != "degraded" || health.Components[2].Component != "realtime_bus" {
		t.Fatalf("expected degraded realtime bus, got %+v", health)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: storage.ErrNotFound, want: http.StatusNotFound},
		{err: storage.ErrConflict, want: http.StatusConflict},
		{err: storage.ErrValidation, want: http.StatusBadRequest},
		{err: storage.ErrUnauthorized, want: http.StatusForbidden},
		{err: storage.ErrPersistence, want: http.StatusInternalServerError},
		{err: storage.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: auth.ErrTokenRevoked, want: http.StatusUnauthorized},
		{err: errAuthRequired, want: http.StatusUnauthorized},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

var _ EventPublisher = (*realtime.Notifier)(nil)
