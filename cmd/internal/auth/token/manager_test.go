package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestManager_MintVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now().UTC()
	for _, scope := range []Scope{ScopeAccess, ScopeRefresh} {
		signed, exp, err := m.Mint("alice@example.com", scope, now)
		if err != nil {
			t.Fatalf("mint %s: %v", scope, err)
		}
		if exp.Before(now) {
			t.Fatalf("mint %s: expiry in the past", scope)
		}

		claims, err := m.Verify(signed, scope, now)
		if err != nil {
			t.Fatalf("verify %s: %v", scope, err)
		}
		if claims.Subject != "alice@example.com" {
			t.Fatalf("subject = %q", claims.Subject)
		}
		if claims.Scope != scope {
			t.Fatalf("scope = %q, want %q", claims.Scope, scope)
		}
		if claims.Issuer != "authgate" {
			t.Fatalf("issuer = %q", claims.Issuer)
		}
		if !claims.ExpiresAt.Equal(exp.Truncate(time.Second)) {
			t.Fatalf("exp = %v, want %v", claims.ExpiresAt, exp.Truncate(time.Second))
		}
	}
}

func TestManager_Verify_WrongScope_BothDirections(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Now().UTC()

	access, _, err := m.Mint("u@example.com", ScopeAccess, now)
	if err != nil {
		t.Fatalf("mint access: %v", err)
	}
	refresh, _, err := m.Mint("u@example.com", ScopeRefresh, now)
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}

	if _, err := m.Verify(access, ScopeRefresh, now); !errors.Is(err, ErrWrongScope) {
		t.Fatalf("access-as-refresh: expected ErrWrongScope, got %v", err)
	}
	if _, err := m.Verify(refresh, ScopeAccess, now); !errors.Is(err, ErrWrongScope) {
		t.Fatalf("refresh-as-access: expected ErrWrongScope, got %v", err)
	}
}

func TestManager_Verify_Expired(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Leeway = 0
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	issued := time.Now().UTC().Add(-24 * time.Hour)
	signed, _, err := m.Mint("u@example.com", ScopeAccess, issued)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = m.Verify(signed, ScopeAccess, time.Now().UTC())
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestManager_Verify_LeewayToleratesSkew(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now().UTC()
	signed, exp, err := m.Mint("u@example.com", ScopeAccess, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Just past expiry but within the 30s leeway window.
	if _, err := m.Verify(signed, ScopeAccess, exp.Add(10*time.Second)); err != nil {
		t.Fatalf("expected leeway to tolerate 10s skew, got %v", err)
	}
	if _, err := m.Verify(signed, ScopeAccess, exp.Add(5*time.Minute)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired well past leeway, got %v", err)
	}
}

func TestManager_Verify_TamperedSignature(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Now().UTC()

	signed, _, err := m.Mint("u@example.com", ScopeAccess, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Flip a character in the signature segment.
	i := strings.LastIndex(signed, ".") + 1
	b := []byte(signed)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	if _, err := m.Verify(string(b), ScopeAccess, now); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed on tamper, got %v", err)
	}
}

func TestManager_Verify_WrongKey(t *testing.T) {
	t.Parallel()

	m1, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager 1: %v", err)
	}

	cfg2 := testConfig()
	cfg2.Secret = []byte("ffffffffffffffffffffffffffffffff")
	m2, err := NewManager(cfg2)
	if err != nil {
		t.Fatalf("new manager 2: %v", err)
	}

	now := time.Now().UTC()
	signed, _, err := m1.Mint("u@example.com", ScopeAccess, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := m2.Verify(signed, ScopeAccess, now); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed under different key, got %v", err)
	}
}

func TestManager_Verify_Garbage(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Now().UTC()

	for _, s := range []string{"", "not-a-token", "a.b", "a.b.c.d", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := m.Verify(s, ScopeAccess, now); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", s, err)
		}
	}
}

func TestManager_Mint_BadInput(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Now().UTC()

	if _, _, err := m.Mint("", ScopeAccess, now); !errors.Is(err, ErrMintInput) {
		t.Fatalf("empty subject: expected ErrMintInput, got %v", err)
	}
	if _, _, err := m.Mint("u@example.com", Scope("session"), now); !errors.Is(err, ErrMintInput) {
		t.Fatalf("unknown scope: expected ErrMintInput, got %v", err)
	}
	if _, _, err := m.Mint("u@example.com", Scope("session"), now); errors.Is(err, ErrConfig) {
		t.Fatalf("mint input error must not read as a config error: %v", err)
	}
}
