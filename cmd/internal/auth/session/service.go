package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"authgate/cmd/identity"
	"authgate/cmd/internal/auth/token"
	sectoken "authgate/cmd/security/token"
)

// TokenPair is the session credential returned to clients on login,
// federated callback, and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	AccessExp    time.Time `json:"-"`
	RefreshExp   time.Time `json:"-"`
}

// Service implements the high-level session operations for the gateway.
//
// It issues token pairs after a credential check has already succeeded,
// validates access tokens, and performs refresh rotation with reuse
// detection on top of the user store's compare-and-swap primitive.
type Service struct {
	tokens *token.Manager
	users  identity.Store
}

// NewService constructs a Service over the given token manager and user store.
func NewService(tokens *token.Manager, users identity.Store) *Service {
	return &Service{tokens: tokens, users: users}
}

// Login issues a fresh token pair for an authenticated user and records
// the refresh token's digest, displacing any previously active session.
//
// Credential verification is the caller's job; Login trusts its input.
func (s *Service) Login(ctx context.Context, email string, now time.Time) (TokenPair, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return TokenPair{}, ErrUnauthenticated
	}

	pair, err := s.mintPair(email, now)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.users.SetRefreshToken(ctx, email, sectoken.HashRefreshTokenHex(pair.RefreshToken), now); err != nil {
		if identity.IsNotFound(err) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}

	return pair, nil
}

// Refresh validates a presented refresh token and rotates the pair.
//
// Two gates, both fail-closed:
//  1. the JWT itself must verify with scope "refresh";
//  2. its digest must match the single digest on record, swapped
//     atomically for the new one. A mismatch means the token was rotated
//     away or replayed; the store clears the record so every outstanding
//     token for that user is dead.
func (s *Service) Refresh(ctx context.Context, presented string, now time.Time) (TokenPair, error) {
	presented = strings.TrimSpace(presented)
	// Sanity bound against pathological inputs.
	if presented == "" || len(presented) > 4096 {
		return TokenPair{}, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(presented, token.ScopeRefresh, now)
	if err != nil {
		// Keep the verification sub-kind (expired, malformed, wrong
		// scope) visible to errors.Is for logs and metrics.
		return TokenPair{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	pair, err := s.mintPair(claims.Subject, now)
	if err != nil {
		return TokenPair{}, err
	}

	err = s.users.RotateRefreshToken(ctx,
		claims.Subject,
		sectoken.HashRefreshTokenHex(presented),
		sectoken.HashRefreshTokenHex(pair.RefreshToken),
		now,
	)
	switch {
	case err == nil:
		return pair, nil
	case identity.IsTokenReused(err):
		return TokenPair{}, ErrRevokedOrReused
	case identity.IsNotFound(err):
		return TokenPair{}, ErrUnauthenticated
	default:
		return TokenPair{}, err
	}
}

// Authenticate verifies an access token and resolves its subject.
//
// The user lookup keeps revocation server-authoritative: a deleted
// account invalidates still-unexpired access tokens.
func (s *Service) Authenticate(ctx context.Context, presented string, now time.Time) (identity.User, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > 4096 {
		return identity.User{}, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(presented, token.ScopeAccess, now)
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, ErrUnauthenticated
		}
		return identity.User{}, err
	}

	return user, nil
}

// Invalidate ends the user's session by clearing the stored refresh
// digest. Idempotent from the client's point of view.
func (s *Service) Invalidate(ctx context.Context, email string, now time.Time) error {
	err := s.users.ClearRefreshToken(ctx, identity.NormalizeEmail(email), now)
	if err != nil && !identity.IsNotFound(err) {
		return err
	}
	return nil
}

func (s *Service) mintPair(subject string, now time.Time) (TokenPair, error) {
	access, accessExp, err := s.tokens.Mint(subject, token.ScopeAccess, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.Mint(subject, token.ScopeRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}
