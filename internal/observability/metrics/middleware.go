package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// WrapWriter wraps w so the final status can be read after the handler ran.
// The wrapper keeps Hijacker and Flusher, so websocket upgrades pass through.
func WrapWriter(w http.ResponseWriter, r *http.Request) middleware.WrapResponseWriter {
	return middleware.NewWrapResponseWriter(w, r.ProtoMajor)
}

// StatusOf reports the status written through ww, or 200 when the handler
// never called WriteHeader.
func StatusOf(ww middleware.WrapResponseWriter) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}

// HTTPMiddleware counts and times requests, labelled by the matched chi route
// pattern. A nil recorder means Default().
func HTTPMiddleware(recorder *Recorder, next http.Handler) http.Handler {
	if recorder == nil {
		recorder = Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := WrapWriter(w, r)
		start := time.Now()
		next.ServeHTTP(ww, r)
		recorder.ObserveRequest(r.Method, routeLabel(r), StatusOf(ww), time.Since(start))
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return collapseIDs(r.URL.Path)
}

// collapseIDs replaces numeric and uuid path segments with :id.
func collapseIDs(path string) string {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, segment := range segments {
		if isNumeric(segment) || uuid.Validate(segment) == nil {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
