package authapi

import "authgate/cmd/internal/auth/session"

// credentialsRequest is the body of both signup and login. The username
// field carries the account email; the name is kept for wire
// compatibility with existing clients.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupResponse struct {
	NewUser string `json:"new_user"`
}

// federatedLoginResponse is the callback body: the provisioned account
// plus the same token pair a local login returns.
type federatedLoginResponse struct {
	User string `json:"user"`
	session.TokenPair
}

type secretResponse struct {
	Message string `json:"message"`
	Owner   string `json:"owner"`
}
