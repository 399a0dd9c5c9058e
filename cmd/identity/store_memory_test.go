package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"authgate/cmd/security/token"
)

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateAndFind_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:        "User@Example.com",
		PasswordHash: strPtr("$argon2id$fake"),
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" || len(u.ID) != 26 {
		t.Fatalf("expected 26-char ULID id, got %q", u.ID)
	}
	if u.EmailNorm != "user@example.com" {
		t.Fatalf("expected normalized email, got %q", u.EmailNorm)
	}

	got, err := s.FindByEmail(ctx, "USER@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected id %q, got %q", u.ID, got.ID)
	}
	if got.PasswordHash == nil || *got.PasswordHash != "$argon2id$fake" {
		t.Fatalf("expected password hash preserved, got %v", got.PasswordHash)
	}
	if got.Federated() {
		t.Fatalf("user with password hash should not be federated")
	}
}

func TestMemoryStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "dup@example.com"}); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	_, err := s.CreateUser(ctx, CreateUserInput{Email: "DUP@example.COM"})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestMemoryStore_FindByEmail_Missing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.FindByEmail(context.Background(), "nobody@example.com")
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not-found, got: %v", err)
	}
}

func TestMemoryStore_FederatedUser_NoPasswordHash(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "oauth@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !u.Federated() {
		t.Fatalf("user without password hash should be federated")
	}
}

func TestMemoryStore_RefreshRotation_HappyPath(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "rot@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h1 := token.HashSHA256Hex("refresh-token-1")
	h2 := token.HashSHA256Hex("refresh-token-2")

	if err := s.SetRefreshToken(ctx, "rot@example.com", h1, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.RotateRefreshToken(ctx, "rot@example.com", h1, h2, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	got, err := s.FindByEmail(ctx, "rot@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.RefreshTokenHash == nil || *got.RefreshTokenHash != h2 {
		t.Fatalf("expected rotated hash, got %v", got.RefreshTokenHash)
	}
}

func TestMemoryStore_RefreshRotation_ReuseOldToken_KillsSession(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "reuse@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h1 := token.HashSHA256Hex("refresh-token-1")
	h2 := token.HashSHA256Hex("refresh-token-2")
	h3 := token.HashSHA256Hex("refresh-token-3")

	if err := s.SetRefreshToken(ctx, "reuse@example.com", h1, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.RotateRefreshToken(ctx, "reuse@example.com", h1, h2, now); err != nil {
		t.Fatalf("rotate 1: %v", err)
	}

	// Presenting the superseded token is treated as reuse.
	err := s.RotateRefreshToken(ctx, "reuse@example.com", h1, h3, now)
	if err == nil || !IsTokenReused(err) {
		t.Fatalf("expected token-reused, got: %v", err)
	}

	// Reuse detection must clear the stored digest, so even the
	// legitimate current token is now dead.
	err = s.RotateRefreshToken(ctx, "reuse@example.com", h2, h3, now)
	if err == nil || !IsTokenReused(err) {
		t.Fatalf("expected token-reused after kill, got: %v", err)
	}
}

func TestMemoryStore_RefreshRotation_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "race@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h1 := token.HashSHA256Hex("refresh-token-1")
	if err := s.SetRefreshToken(ctx, "race@example.com", h1, now); err != nil {
		t.Fatalf("set: %v", err)
	}

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			h := token.HashSHA256Hex("next-token-" + string(rune('a'+i)))
			errs <- s.RotateRefreshToken(ctx, "race@example.com", h1, h, now)
		}(i)
	}

	wins := 0
	for i := 0; i < n; i++ {
		if err := <-errs; err == nil {
			wins++
		} else if !IsTokenReused(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestMemoryStore_ClearRefreshToken_ThenRotateFails(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "clr@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h1 := token.HashSHA256Hex("refresh-token-1")
	if err := s.SetRefreshToken(ctx, "clr@example.com", h1, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.ClearRefreshToken(ctx, "clr@example.com", now); err != nil {
		t.Fatalf("clear: %v", err)
	}

	err := s.RotateRefreshToken(ctx, "clr@example.com", h1, token.HashSHA256Hex("x"), now)
	if err == nil || !IsTokenReused(err) {
		t.Fatalf("expected token-reused after clear, got: %v", err)
	}
}

func TestMemoryStore_RotateRefreshToken_UnknownUser(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	err := s.RotateRefreshToken(context.Background(), "ghost@example.com",
		token.HashSHA256Hex("a"), token.HashSHA256Hex("b"), time.Now().UTC())
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not-found, got: %v", err)
	}
}

func TestOpError_UnwrapsSentinels(t *testing.T) {
	t.Parallel()

	err := OpError{Op: "identity.Test", Kind: ErrTokenReused, Msg: "boom"}
	if !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
}
