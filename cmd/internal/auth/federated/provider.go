package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Identity is the normalized result of a federated login: the fields the
// gateway actually binds a session to, regardless of provider.
type Identity struct {
	Provider string
	Subject  string // provider-scoped stable user id
	Email    string // verified email
	Name     string
}

// Provider abstracts one external OAuth 2.0 identity provider.
type Provider interface {
	// Name is the stable lowercase provider key used in URLs ("google").
	Name() string

	// AuthCodeURL builds the authorization redirect carrying state.
	AuthCodeURL(state string) string

	// Exchange trades the callback code for a provider token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchIdentity resolves the provider token to a normalized Identity.
	FetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error)
}

const fetchTimeout = 10 * time.Second

// oauthProvider is the shared oauth2.Config plumbing; the identity fetch
// differs per provider.
type oauthProvider struct {
	name string
	conf *oauth2.Config

	// userInfoURL overrides the provider's default identity endpoint (tests).
	userInfoURL string
	// emailsURL is GitHub's fallback endpoint for private emails.
	emailsURL string
}

func (p *oauthProvider) Name() string { return p.name }

func (p *oauthProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *oauthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("empty authorization code")
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return p.conf.Exchange(ctx, code)
}

// googleProvider resolves identity via the OpenID userinfo endpoint.
type googleProvider struct {
	oauthProvider
}

func (p *googleProvider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var ui struct {
		Sub           string `json:"sub"`
		ID            string `json:"id"` // v1 endpoint uses "id"
		Email         string `json:"email"`
		VerifiedEmail *bool  `json:"verified_email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := p.getJSON(ctx, tok, p.userInfoURL, &ui); err != nil {
		return Identity{}, err
	}

	sub := ui.Sub
	if sub == "" {
		sub = ui.ID
	}
	if sub == "" || ui.Email == "" {
		return Identity{}, ErrNoVerifiedEmail
	}
	if v := firstBool(ui.EmailVerified, ui.VerifiedEmail); v != nil && !*v {
		return Identity{}, ErrNoVerifiedEmail
	}

	return Identity{
		Provider: p.name,
		Subject:  sub,
		Email:    ui.Email,
		Name:     ui.Name,
	}, nil
}

// githubProvider resolves identity via /user, falling back to /user/emails
// for accounts with a private email.
type githubProvider struct {
	oauthProvider
}

func (p *githubProvider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var u struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := p.getJSON(ctx, tok, p.userInfoURL, &u); err != nil {
		return Identity{}, err
	}
	if u.ID == 0 {
		return Identity{}, ErrNoVerifiedEmail
	}

	email := u.Email
	if email == "" {
		var err error
		email, err = p.fetchPrimaryEmail(ctx, tok)
		if err != nil {
			return Identity{}, err
		}
	}
	if email == "" {
		return Identity{}, ErrNoVerifiedEmail
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return Identity{
		Provider: p.name,
		Subject:  fmt.Sprintf("%d", u.ID),
		Email:    email,
		Name:     name,
	}, nil
}

func (p *githubProvider) fetchPrimaryEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, tok, p.emailsURL, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrNoVerifiedEmail
}

func (p *oauthProvider) getJSON(ctx context.Context, tok *oauth2.Token, url string, out any) error {
	client := p.conf.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	return dec.Decode(out)
}

func firstBool(ps ...*bool) *bool {
	for _, p := range ps {
		if p != nil {
			return p
		}
	}
	return nil
}
