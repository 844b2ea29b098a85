// Package api is the HTTP client for the CNC maintenance backend.
//
// # Overview
//
// Client is the single point of egress. It resolves paths against a fixed
// base URL, encodes bodies as JSON, attaches the bearer token of the current
// session, and tags every request with an X-Request-ID. Admin calls also send
// the configured X-API-Key.
//
// # Authentication
//
// A 401 response triggers exactly one token refresh followed by one replay
// of the original request. Concurrent requests that hit 401 with the same
// token share a single refresh. When the refresh fails, or the replay is
// rejected again, the stored credentials are cleared, OnSessionExpired fires,
// and the caller receives an error wrapping ErrSessionExpired.
//
// Sessions are persisted through a TokenStore so a restart does not force a
// new login.
//
// # Resource Services
//
// Machines, Parts, PartsLists, Admin and Users return thin services over the
// REST resources. They never retry, never cache, and return backend errors
// unmodified as *APIError. Retry and caching policy belongs to internal/query.
//
// # Error Handling
//
// Non-2xx responses become *APIError with the backend message and any
// field-level validation messages. Transport failures are wrapped with
// "execute request". IsNotFound, IsClientError and StatusCode classify errors
// for retry decisions; UserMessage extracts the text views display.
package api
