package federated

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned for a provider name with no
	// registered configuration.
	ErrUnknownProvider = errors.New("federated: unknown provider")

	// ErrStateMismatch is returned when the callback state does not match
	// the value bound to the caller's flow, or the flow expired or was
	// already consumed.
	ErrStateMismatch = errors.New("federated: state mismatch")

	// ErrNoVerifiedEmail is returned when the provider account exposes no
	// verified email address to bind the session to.
	ErrNoVerifiedEmail = errors.New("federated: no verified email")
)

// Flow steps for AuthError.
const (
	StepInitiate = "initiate"
	StepExchange = "exchange"
	StepIdentity = "identity"
)

// AuthError annotates a failure with the flow step it occurred in.
// The step is for logs only; clients always see a generic failure.
type AuthError struct {
	Provider string
	Step     string
	Cause    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("federated: %s: %s: %v", e.Provider, e.Step, e.Cause)
}

func (e *AuthError) Unwrap() error { return e.Cause }
