package token

import "errors"

// Sentinel errors for HMAC key policy checks, stable across errors.Is.
var (
	// ErrHMACKeyMissing: the key env var is unset or blank.
	ErrHMACKeyMissing = errors.New("token: HMAC key not configured")

	// ErrHMACKeyTooShort: the key is present but below the required
	// byte length.
	ErrHMACKeyTooShort = errors.New("token: HMAC key below minimum length")
)
