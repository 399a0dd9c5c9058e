// Package token issues and verifies the gateway's signed credentials.
//
// Both access and refresh tokens are HS256 JWTs carrying a scope claim
// that binds each token to exactly one use: "access" tokens authenticate
// requests, "refresh" tokens mint new pairs. Verification is fail-closed:
// anything that is not a well-formed, correctly signed, unexpired token
// of the expected scope is rejected with a stable sentinel error.
package token
