// Package server hosts the vidshare API behind one chi router.
//
// Every request passes the same middleware chain: real IP and request id
// annotation, request logging, panic recovery, metrics, security headers,
// CORS and rate limiting. Authenticated mutations under /api are written to
// the audit log.
package server
