package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"authgate/cmd/security/token"
)

// MemoryStore is an in-memory user store used when no database is
// configured. State is lost on restart. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User // keyed by normalized email
}

// NewMemoryStore constructs an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	emailNorm := NormalizeEmail(email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[emailNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:           userID,
		Email:        email,
		EmailNorm:    emailNorm,
		PasswordHash: pgTrimPtr(in.PasswordHash),
		CreatedAt:    now,
	}
	cp := u
	s.users[emailNorm] = &cp
	return u, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[emailNorm]
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	cp := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		cp.PasswordHash = &h
	}
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		cp.RefreshTokenHash = &h
	}
	return cp, nil
}

func (s *MemoryStore) SetRefreshToken(_ context.Context, email, tokenHash string, now time.Time) error {
	const op = "identity.SetRefreshToken"

	if strings.TrimSpace(tokenHash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing token hash"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	h := tokenHash
	u.RefreshTokenHash = &h
	return nil
}

// RotateRefreshToken mirrors the Postgres CAS semantics: the mutex stands
// in for the row lock, so concurrent rotations for one user serialize and
// exactly one presenter of the current digest wins.
func (s *MemoryStore) RotateRefreshToken(_ context.Context, email, presentedHash, newHash string, _ time.Time) error {
	const op = "identity.RotateRefreshToken"

	if strings.TrimSpace(presentedHash) == "" || strings.TrimSpace(newHash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing token hash"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}

	if u.RefreshTokenHash == nil || !token.SecureEqualHex(*u.RefreshTokenHash, presentedHash) {
		u.RefreshTokenHash = nil
		return OpError{Op: op, Kind: ErrTokenReused}
	}

	h := newHash
	u.RefreshTokenHash = &h
	return nil
}

func (s *MemoryStore) ClearRefreshToken(_ context.Context, email string, _ time.Time) error {
	const op = "identity.ClearRefreshToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	u.RefreshTokenHash = nil
	return nil
}
