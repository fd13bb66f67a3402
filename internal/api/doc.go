// Package api exposes the generation service over HTTP.
//
// Handlers translate requests into calls on the generation, results and
// credential services and map their errors to status codes through
// MapErrorToStatusCode. Progress is pushed through ProgressHandler over
// server-sent events or WebSocket; GET /generations/{id} is the polling
// fallback. All routes except /health and /metrics require a bearer token
// checked by the middleware package.
package api
