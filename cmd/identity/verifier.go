package identity

import (
	"context"
	"strings"
)

// Verifier checks local email/password credentials against stored digests.
//
// It performs a read plus a constant-time digest comparison and has no other
// side effects. A dummy verification runs whenever the account cannot supply
// a digest (missing user, federated-only account) so the failure modes are
// not timing-distinguishable from a wrong password.
type Verifier struct {
	store     Store
	dummyHash string
}

// NewVerifier constructs a Verifier over the given store.
func NewVerifier(store Store) (*Verifier, error) {
	if store == nil {
		return nil, OpError{Op: "identity.NewVerifier", Kind: ErrInvalidInput, Msg: "nil store"}
	}

	v := &Verifier{store: store}

	// Dummy hash for timing-resistant login checks.
	if hash, err := HashPassword("dummy-password-for-timing-only"); err == nil {
		v.dummyHash = hash
	}

	return v, nil
}

// Verify resolves email/password to a User.
// Missing user -> ErrNotFound; wrong password or federated-only account
// (no digest to compare) -> ErrBadPassword. Callers map both to the same
// client-visible 401 so the failing check is not leaked.
func (v *Verifier) Verify(ctx context.Context, email, passwordPlain string) (User, error) {
	const op = "identity.Verifier.Verify"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(email) == "" || passwordPlain == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and password are required"}
	}

	user, err := v.store.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			v.dummyVerify(passwordPlain)
			return User{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return User{}, err
	}

	if user.PasswordHash == nil {
		v.dummyVerify(passwordPlain)
		return User{}, OpError{Op: op, Kind: ErrBadPassword, Msg: "account has no local password"}
	}

	ok, err := VerifyPassword(passwordPlain, *user.PasswordHash)
	if err != nil || !ok {
		return User{}, OpError{Op: op, Kind: ErrBadPassword}
	}

	return user, nil
}

func (v *Verifier) dummyVerify(passwordPlain string) {
	if v.dummyHash == "" {
		return
	}
	_, _ = VerifyPassword(passwordPlain, v.dummyHash)
}
