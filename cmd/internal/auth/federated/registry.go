package federated

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Registry holds the configured providers. Built once at startup,
// read-only afterwards, so it needs no locking.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from an explicit provider list.
func NewRegistry(providers ...Provider) (*Registry, error) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return nil, fmt.Errorf("federated: provider with empty name")
		}
		if _, dup := m[name]; dup {
			return nil, fmt.Errorf("federated: duplicate provider %q", name)
		}
		m[name] = p
	}
	return &Registry{providers: m}, nil
}

// Lookup resolves a provider by its lowercase name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether no providers are configured.
func (r *Registry) Empty() bool { return len(r.providers) == 0 }

// NewGoogleProvider builds the Google provider.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) Provider {
	return &googleProvider{oauthProvider{
		name: "google",
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}}
}

// NewGitHubProvider builds the GitHub provider.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) Provider {
	return &githubProvider{oauthProvider{
		name: "github",
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user:email"},
		},
		userInfoURL: "https://api.github.com/user",
		emailsURL:   "https://api.github.com/user/emails",
	}}
}

// LoadRegistryFromEnv builds a registry from environment configuration.
//
// Per provider P in {GOOGLE, GITHUB}:
//   - AUTHGATE_OAUTH_<P>_CLIENT_ID
//   - AUTHGATE_OAUTH_<P>_CLIENT_SECRET
//
// A provider with both values set is registered; a provider with only one
// set is a configuration error. The callback URL is derived from baseURL:
// <baseURL>/auth/<provider>/callback.
func LoadRegistryFromEnv(baseURL string) (*Registry, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	type ctor func(id, secret, redirect string) Provider
	specs := []struct {
		env  string
		name string
		mk   ctor
	}{
		{"GOOGLE", "google", NewGoogleProvider},
		{"GITHUB", "github", NewGitHubProvider},
	}

	var providers []Provider
	for _, spec := range specs {
		id := strings.TrimSpace(os.Getenv("AUTHGATE_OAUTH_" + spec.env + "_CLIENT_ID"))
		secret := strings.TrimSpace(os.Getenv("AUTHGATE_OAUTH_" + spec.env + "_CLIENT_SECRET"))

		switch {
		case id == "" && secret == "":
			continue
		case id == "" || secret == "":
			return nil, fmt.Errorf("federated: %s: client id and secret must both be set", spec.name)
		}

		redirect := baseURL + "/auth/" + spec.name + "/callback"
		providers = append(providers, spec.mk(id, secret, redirect))
	}

	return NewRegistry(providers...)
}
