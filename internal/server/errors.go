package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"vidshare/internal/api"
)

var (
	errNotFound         = errors.New("not found")
	errMethodNotAllowed = errors.New("method not allowed")
	errGlobalLimit      = errors.New("global rate limit exceeded")
	errClientLimit      = errors.New("rate limit exceeded")
	errLoginLimit       = errors.New("too many login attempts")
	errLimiterFailure   = errors.New("rate limit failure")
)

// reject answers with the same JSON error body the API handlers use.
func reject(w http.ResponseWriter, status int, err error) {
	api.WriteError(w, status, err)
}

// throttle rejects with 429, advertising retryAfter rounded up to whole seconds.
func throttle(w http.ResponseWriter, err error, retryAfter time.Duration) {
	if seconds := int64((retryAfter + time.Second - 1) / time.Second); seconds > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}
	reject(w, http.StatusTooManyRequests, err)
}
