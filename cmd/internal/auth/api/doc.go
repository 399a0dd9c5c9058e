// Package authapi exposes the gateway's HTTP surface: local signup and
// login, token refresh, the protected probe endpoint, and the federated
// login redirect/callback pair.
//
// Every authentication failure maps to the same generic 401 so responses
// never reveal which sub-check failed; the signup email collision is the
// only 409.
package authapi
