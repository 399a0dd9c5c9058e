package identity

import (
	"context"
	"time"
)

// User is the gateway's canonical security principal. The identity key is the
// normalized email; a user created through a federated provider has no
// password digest and can only sign in through that path.
type User struct {
	ID        string
	Email     string
	EmailNorm string

	// PasswordHash is nil for federated-only accounts.
	PasswordHash *string

	// RefreshTokenHash is the digest of the single currently valid refresh
	// token, or nil when no session is active. The plain token is never stored.
	RefreshTokenHash *string

	CreatedAt time.Time
}

// Federated reports whether the account was provisioned by a federated login
// and has no local password.
func (u User) Federated() bool { return u.PasswordHash == nil }

// CreateUserInput describes a user registration request.
// PasswordHash nil marks a federated-only account.
type CreateUserInput struct {
	Email        string
	PasswordHash *string
	Now          time.Time
}

// Store is the user persistence boundary.
//
// Implementations must keep RotateRefreshToken atomic: the compare of the
// presented digest against the stored one and the subsequent overwrite (or
// clear) must not interleave with a concurrent rotation for the same user.
type Store interface {
	// CreateUser inserts a new user. Duplicate emails (case-insensitive)
	// fail with a ConflictError wrapping ErrConflict.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// FindByEmail loads a user by normalized email. Missing -> ErrNotFound.
	FindByEmail(ctx context.Context, email string) (User, error)

	// SetRefreshToken unconditionally overwrites the stored refresh-token
	// digest. This is the rotation point for logins: any previously issued
	// refresh token stops matching. Missing user -> ErrNotFound.
	SetRefreshToken(ctx context.Context, email, tokenHash string, now time.Time) error

	// RotateRefreshToken atomically compares presentedHash against the stored
	// digest and, on match, replaces it with newHash. On mismatch (including
	// an empty stored value) it clears the stored digest and returns
	// ErrTokenReused: a superseded or cleared token can never become valid
	// again. Missing user -> ErrNotFound.
	RotateRefreshToken(ctx context.Context, email, presentedHash, newHash string, now time.Time) error

	// ClearRefreshToken removes the stored digest, ending the session.
	// Idempotent; missing user -> ErrNotFound.
	ClearRefreshToken(ctx context.Context, email string, now time.Time) error
}
