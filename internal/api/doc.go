// Package api hosts the HTTP handlers that front the vidshare REST API.
//
// Handlers are thin: they decode and validate the request, resolve the
// caller from the bearer token placed on the context by Authenticate, call
// one storage.Repository operation and shape the response. Storage sentinel
// errors are mapped to status codes in one place (statusForError).
//
// Successful mutations that change what a video's room displays (comment
// deletion, reaction toggles) are published through the injected
// EventPublisher after the store call returns. New comments reach the room
// through the store's comment notifier instead.
//
// Routes expects upstream middleware from internal/server to have applied
// request ids, logging, metrics, CORS and the global rate limit.
package api
