// Package session implements the gateway's session model.
//
// A session is represented entirely by a token pair: a short-lived access
// JWT and a longer-lived refresh JWT. The server keeps exactly one valid
// refresh token per user, stored as a keyed digest on the user row
// (HMAC-SHA256 when AUTHGATE_TOKEN_HMAC_KEY is set; otherwise SHA-256 for
// dev/back-compat). Refreshing rotates the pair atomically; presenting a
// superseded refresh token kills the session outright.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
