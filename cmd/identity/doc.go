// Package identity implements the gateway's user and credential foundation.
//
// It contains the User model, email normalization, password verification,
// and the UserStore boundary used by the session and HTTP layers. The store
// owns the single-active-refresh-token invariant: a user row holds at most
// one refresh-token digest, and rotation is an atomic compare-and-swap.
//
// This package is intentionally dependency-light and security-first.
package identity
