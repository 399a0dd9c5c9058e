package authapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"authgate/cmd/internal/auth/federated"
)

// handleFederated routes /auth/{provider} and /auth/{provider}/callback.
func (h *Handler) handleFederated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.flow == nil {
		writeError(w, http.StatusNotFound, "not_found", "federated login not configured")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/auth/"), "/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleFederatedInitiate(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "callback":
		h.handleFederatedCallback(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (h *Handler) handleFederatedInitiate(w http.ResponseWriter, r *http.Request, provider string) {
	now := time.Now().UTC()

	init, err := h.flow.Initiate(provider, now)
	if err != nil {
		if errors.Is(err, federated.ErrUnknownProvider) {
			writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider")
			return
		}
		h.log.Error("auth.federated.initiate.fail", "provider", provider, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.FlowCookieName,
		Value:    init.FlowID,
		Path:     "/auth/",
		MaxAge:   int(federated.DefaultStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, init.RedirectURL, http.StatusFound)
}

func (h *Handler) handleFederatedCallback(w http.ResponseWriter, r *http.Request, provider string) {
	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	var flowID string
	if c, err := r.Cookie(h.cfg.FlowCookieName); err == nil {
		flowID = strings.TrimSpace(c.Value)
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	// The flow cookie is single-use regardless of outcome.
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.FlowCookieName,
		Value:    "",
		Path:     "/auth/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	user, err := h.flow.Complete(ctx, provider, flowID, state, code, now)
	if err != nil {
		var authErr *federated.AuthError
		switch {
		case errors.Is(err, federated.ErrUnknownProvider):
			writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider")
			return
		case errors.Is(err, federated.ErrStateMismatch):
			h.auditFederatedFailed(ctx, ip, ua, provider, "state")
			h.metrics.federatedLogin(provider, "state_mismatch")
			writeUnauthorized(w)
			return
		case errors.As(err, &authErr):
			// Step detail goes to logs and audit, never to the client.
			h.log.Warn("auth.federated.fail", "provider", provider, "step", authErr.Step, "err", authErr.Cause)
			h.auditFederatedFailed(ctx, ip, ua, provider, authErr.Step)
			h.metrics.federatedLogin(provider, "fail")
			writeUnauthorized(w)
			return
		default:
			h.log.Error("auth.federated.callback.fail", "provider", provider, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	pair, err := h.sessions.Login(ctx, user.EmailNorm, now)
	if err != nil {
		h.log.Error("auth.federated.issue.fail", "provider", provider, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.federatedLogin(provider, "success")
	h.auditFederatedSuccess(ctx, user.ID, ip, ua, provider)
	writeJSON(w, http.StatusOK, federatedLoginResponse{User: user.Email, TokenPair: pair})
}
