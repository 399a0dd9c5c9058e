package identity

import (
	"context"
	"testing"
	"time"
)

func mustCreateLocalUser(t *testing.T, s Store, email, plain string) User {
	t.Helper()

	hash, err := HashPassword(plain)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Email:        email,
		PasswordHash: &hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestVerifier_Verify_Success(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	want := mustCreateLocalUser(t, s, "alice@example.com", "correct horse battery")

	v, err := NewVerifier(s)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	got, err := v.Verify(context.Background(), "Alice@Example.COM", "correct horse battery")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("expected user %q, got %q", want.ID, got.ID)
	}
}

func TestVerifier_Verify_WrongPassword(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	mustCreateLocalUser(t, s, "bob@example.com", "correct horse battery")

	v, err := NewVerifier(s)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	_, err = v.Verify(context.Background(), "bob@example.com", "wrong password here")
	if err == nil || !IsBadPassword(err) {
		t.Fatalf("expected bad-password, got: %v", err)
	}
}

func TestVerifier_Verify_MissingUser(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(NewMemoryStore())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	_, err = v.Verify(context.Background(), "ghost@example.com", "whatever password")
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not-found, got: %v", err)
	}
}

func TestVerifier_Verify_FederatedOnlyAccount(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	if _, err := s.CreateUser(context.Background(), CreateUserInput{Email: "sso@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	v, err := NewVerifier(s)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	_, err = v.Verify(context.Background(), "sso@example.com", "any password at all")
	if err == nil || !IsBadPassword(err) {
		t.Fatalf("expected bad-password for federated-only account, got: %v", err)
	}
}

func TestVerifier_Verify_EmptyInput(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(NewMemoryStore())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := v.Verify(context.Background(), "", "pw"); err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid-input for empty email, got: %v", err)
	}
	if _, err := v.Verify(context.Background(), "a@b.com", ""); err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid-input for empty password, got: %v", err)
	}
}
