// Package federated adapts external OAuth 2.0 identity providers to the
// gateway's session model.
//
// A federated login is a three-step flow: initiate (redirect the browser
// to the provider with an anti-forgery state), exchange (trade the
// callback code for a provider access token), and identity (resolve the
// provider token to a verified email). The resolved email feeds the same
// session issuance path as a local password login; nothing downstream
// can tell the two apart.
//
// Providers are registered once at startup from environment configuration
// and the registry is immutable afterwards.
package federated
