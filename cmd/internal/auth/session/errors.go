package session

import "errors"

var (
	// ErrUnauthenticated is the generic authentication failure. It covers
	// malformed, expired, wrong-scope, and unknown-subject tokens so the
	// client-visible response never reveals which check failed.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrRevokedOrReused is returned when a structurally valid refresh
	// token does not match the single token on record: it was rotated
	// away, invalidated, or is being replayed. The stored digest is
	// cleared before this is returned, so the user must log in again.
	ErrRevokedOrReused = errors.New("refresh token revoked or reused")
)
