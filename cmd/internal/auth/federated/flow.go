package federated

import (
	"context"
	"time"

	"authgate/cmd/identity"
)

// Flow orchestrates a complete federated login against the registry,
// the pending-state store, and the user store.
type Flow struct {
	registry *Registry
	states   *StateStore
	users    identity.Store
}

// NewFlow wires the federated login flow.
func NewFlow(registry *Registry, states *StateStore, users identity.Store) *Flow {
	return &Flow{registry: registry, states: states, users: users}
}

// Initiated carries what the transport layer needs to redirect the browser.
type Initiated struct {
	RedirectURL string
	FlowID      string
}

// Initiate starts a login with the named provider.
func (f *Flow) Initiate(provider string, now time.Time) (Initiated, error) {
	p, err := f.registry.Lookup(provider)
	if err != nil {
		return Initiated{}, err
	}

	flowID, state, err := f.states.Begin(p.Name(), now)
	if err != nil {
		return Initiated{}, &AuthError{Provider: p.Name(), Step: StepInitiate, Cause: err}
	}

	return Initiated{
		RedirectURL: p.AuthCodeURL(state),
		FlowID:      flowID,
	}, nil
}

// Complete finishes a login from provider callback parameters and returns
// the local user the session should be bound to, provisioning the account
// on first login.
//
// The state check runs before any network call so a forged callback costs
// nothing. First-writer-wins on provisioning: losing a concurrent create
// race falls back to reading the winner's row.
func (f *Flow) Complete(ctx context.Context, provider, flowID, state, code string, now time.Time) (identity.User, error) {
	p, err := f.registry.Lookup(provider)
	if err != nil {
		return identity.User{}, err
	}

	if err := f.states.Consume(flowID, p.Name(), state, now); err != nil {
		return identity.User{}, err
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return identity.User{}, &AuthError{Provider: p.Name(), Step: StepExchange, Cause: err}
	}

	ident, err := p.FetchIdentity(ctx, tok)
	if err != nil {
		return identity.User{}, &AuthError{Provider: p.Name(), Step: StepIdentity, Cause: err}
	}

	user, err := f.users.FindByEmail(ctx, ident.Email)
	if err == nil {
		return user, nil
	}
	if !identity.IsNotFound(err) {
		return identity.User{}, err
	}

	user, err = f.users.CreateUser(ctx, identity.CreateUserInput{
		Email: ident.Email,
		Now:   now,
	})
	if identity.IsConflict(err) {
		return f.users.FindByEmail(ctx, ident.Email)
	}
	if err != nil {
		return identity.User{}, err
	}
	return user, nil
}
