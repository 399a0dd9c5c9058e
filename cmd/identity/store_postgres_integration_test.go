package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/cmd/security/token"
)

// Integration tests are opt-in and require AUTHGATE_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyUserSchema(t, pool, schema)

	s := mustNewUserStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreateUser(ctx, CreateUserInput{
		Email:        "User@Example.com",
		PasswordHash: strPtr("$argon2id$fake-1"),
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	// Same email (case-insensitive) should conflict.
	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:        "user@example.COM",
		PasswordHash: strPtr("$argon2id$fake-2"),
		Now:          time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_FindByEmail_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyUserSchema(t, pool, schema)

	s := mustNewUserStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	email := "find-" + strings.ToLower(mustNewULIDLike(t)) + "@example.com"
	created, err := s.CreateUser(ctx, CreateUserInput{
		Email: email,
		Now:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if len(created.ID) != 26 {
		t.Fatalf("expected 26-char ULID id, got %q", created.ID)
	}

	got, err := s.FindByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected id %q, got %q", created.ID, got.ID)
	}
	if !got.Federated() {
		t.Fatalf("user created without password hash should be federated")
	}
	if got.RefreshTokenHash != nil {
		t.Fatalf("new user should have no refresh digest")
	}
}

func TestPostgresStore_RotateRefreshToken_Success_ThenReuseKills(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyUserSchema(t, pool, schema)

	s := mustNewUserStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	email := "rotate-" + strings.ToLower(mustNewULIDLike(t)) + "@example.com"
	if _, err := s.CreateUser(ctx, CreateUserInput{Email: email, Now: time.Now().UTC()}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	h1 := token.HashSHA256Hex("refresh-token-1")
	h2 := token.HashSHA256Hex("refresh-token-2")
	h3 := token.HashSHA256Hex("refresh-token-3")

	if err := s.SetRefreshToken(ctx, email, h1, time.Now().UTC()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.RotateRefreshToken(ctx, email, h1, h2, time.Now().UTC()); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	got, err := s.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.RefreshTokenHash == nil || *got.RefreshTokenHash != h2 {
		t.Fatalf("expected rotated digest, got %v", got.RefreshTokenHash)
	}

	// Superseded token must be treated as reuse and kill the session.
	err = s.RotateRefreshToken(ctx, email, h1, h3, time.Now().UTC())
	if err == nil || !IsTokenReused(err) {
		t.Fatalf("expected token-reused, got: %v", err)
	}

	got, err = s.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find after reuse: %v", err)
	}
	if got.RefreshTokenHash != nil {
		t.Fatalf("expected cleared digest after reuse, got %v", got.RefreshTokenHash)
	}

	// Even the previously current token is dead now.
	err = s.RotateRefreshToken(ctx, email, h2, h3, time.Now().UTC())
	if err == nil || !IsTokenReused(err) {
		t.Fatalf("expected token-reused after kill, got: %v", err)
	}
}

func TestPostgresStore_ClearRefreshToken_Idempotent(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyUserSchema(t, pool, schema)

	s := mustNewUserStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	email := "clear-" + strings.ToLower(mustNewULIDLike(t)) + "@example.com"
	if _, err := s.CreateUser(ctx, CreateUserInput{Email: email, Now: time.Now().UTC()}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.SetRefreshToken(ctx, email, token.HashSHA256Hex("t"), time.Now().UTC()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.ClearRefreshToken(ctx, email, time.Now().UTC()); err != nil {
		t.Fatalf("clear 1: %v", err)
	}
	if err := s.ClearRefreshToken(ctx, email, time.Now().UTC()); err != nil {
		t.Fatalf("clear 2: %v", err)
	}
}

// ---- helpers ----

func mustNewUserStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("AUTHGATE_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: AUTHGATE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse AUTHGATE_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	// Validate acquire quickly (fast fail).
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (AUTHGATE_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "authgate_it_" + strings.ToLower(mustNewULIDLike(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgxIdent1(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgxIdent1(schema)+` CASCADE`)
}

func mustApplyUserSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	users := pgIdent(schema, "users")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  password_hash TEXT NULL,
  refresh_token_hash TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  token_rotated_at TIMESTAMPTZ NULL,

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_users_refresh_hash_len CHECK (refresh_token_hash IS NULL OR char_length(refresh_token_hash) = 64),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
);
`, users)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func mustNewULIDLike(t *testing.T) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id
}

func pgxIdent1(ident string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection in dynamic DDL.
	return pgx.Identifier{ident}.Sanitize()
}
