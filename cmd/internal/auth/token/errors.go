package token

import "errors"

// Sentinel errors (stable for errors.Is across the auth stack).
var (
	// ErrConfig indicates invalid or missing token configuration.
	ErrConfig = errors.New("token: invalid config")

	// ErrMintInput is returned when Mint is called with an empty subject
	// or an unknown scope.
	ErrMintInput = errors.New("token: invalid mint input")

	// ErrMalformed covers everything structurally wrong with a presented
	// token: bad encoding, unknown algorithm, bad signature, missing claims.
	ErrMalformed = errors.New("token: malformed")

	// ErrExpired is returned for a token whose exp claim has passed.
	ErrExpired = errors.New("token: expired")

	// ErrWrongScope is returned when a valid token of one scope is
	// presented where the other is required.
	ErrWrongScope = errors.New("token: wrong scope")
)
