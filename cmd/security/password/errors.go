package password

import "errors"

// Sentinel errors, stable across errors.Is.
var (
	// Policy rejections; surfaced to the signup path as bad input.
	ErrPasswordTooShort = errors.New("password: below minimum length")
	ErrPasswordTooLong  = errors.New("password: above maximum length")
	ErrWeakPassword     = errors.New("password: rejected by weakness check")

	// ErrInvalidHash: a stored PHC string that cannot be parsed. Treated
	// as a verification failure, never as a match.
	ErrInvalidHash = errors.New("password: unparseable hash")
)
