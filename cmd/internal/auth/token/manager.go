package token

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Scope binds a token to exactly one role in the protocol.
type Scope string

const (
	ScopeAccess  Scope = "access"
	ScopeRefresh Scope = "refresh"
)

// Claims is the verified identity envelope carried by a token.
type Claims struct {
	Subject   string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

type wireClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 access and refresh tokens.
// Safe for concurrent use.
type Manager struct {
	cfg Config
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// Mint signs a token for subject with the given scope, applying the
// configured TTL for that scope.
func (m *Manager) Mint(subject string, scope Scope, now time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMintInput
	}

	var ttl time.Duration
	switch scope {
	case ScopeAccess:
		ttl = m.cfg.AccessTTL
	case ScopeRefresh:
		ttl = m.cfg.RefreshTTL
	default:
		return "", time.Time{}, ErrMintInput
	}

	// Unique jti so two tokens minted within the same second never collide.
	jti, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", time.Time{}, err
	}

	exp := now.Add(ttl)
	claims := wireClaims{
		Scope: string(scope),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a presented token and requires the given scope.
//
// Fail-closed: the algorithm is pinned to HS256 (no "alg" negotiation),
// issuer and expiry are enforced, and every structural problem collapses
// into ErrMalformed so callers cannot leak parse detail to clients.
func (m *Manager) Verify(presented string, want Scope, now time.Time) (Claims, error) {
	if presented == "" {
		return Claims{}, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var wc wireClaims
	_, err := parser.ParseWithClaims(presented, &wc, func(t *jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	if wc.Subject == "" || wc.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}

	scope := Scope(wc.Scope)
	if scope != ScopeAccess && scope != ScopeRefresh {
		return Claims{}, ErrMalformed
	}
	if scope != want {
		return Claims{}, ErrWrongScope
	}

	c := Claims{
		Subject:   wc.Subject,
		Scope:     scope,
		ExpiresAt: wc.ExpiresAt.Time,
		Issuer:    wc.Issuer,
	}
	if wc.IssuedAt != nil {
		c.IssuedAt = wc.IssuedAt.Time
	}
	return c, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }
