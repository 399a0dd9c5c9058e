package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/cmd/identity"
	"authgate/cmd/internal/auth/federated"
	"authgate/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to identity/session/federated services.
type Handler struct {
	log *slog.Logger
	cfg Config

	// pool backs the audit log and IP throttle; nil in memory-store mode,
	// which disables both.
	pool *pgxpool.Pool

	users    identity.Store
	verifier *identity.Verifier
	sessions *session.Service
	flow     *federated.Flow

	metrics *Metrics
}

// NewHandler constructs the auth Handler. flow may be nil when no
// federated provider is configured; pool may be nil in memory-store mode.
func NewHandler(log *slog.Logger, cfg Config, pool *pgxpool.Pool, users identity.Store, sessions *session.Service, flow *federated.Flow, metrics *Metrics) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("authapi: nil user store")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}

	verifier, err := identity.NewVerifier(users)
	if err != nil {
		return nil, err
	}

	return &Handler{
		log:      log,
		cfg:      cfg,
		pool:     pool,
		users:    users,
		verifier: verifier,
		sessions: sessions,
		flow:     flow,
		metrics:  metrics,
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/signup", h.handleSignup)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/refresh_token", h.handleRefresh)
	mux.HandleFunc("/secret", h.handleSecret)
	mux.HandleFunc("/auth/", h.handleFederated)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Username)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		if identity.IsInvalidInput(err) {
			h.metrics.signup("rejected")
			writeError(w, http.StatusBadRequest, "weak_password", "password does not meet policy")
			return
		}
		h.log.Error("auth.signup.hash.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: &hash,
		Now:          now,
	})
	switch {
	case err == nil:
	case identity.IsConflict(err):
		h.metrics.signup("conflict")
		writeError(w, http.StatusConflict, "account_exists", "account already exists")
		return
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid email")
		return
	default:
		h.log.Error("auth.signup.create.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.signup("success")
	h.auditSignup(ctx, user.ID, ip, ua, user.EmailNorm)
	writeJSON(w, http.StatusOK, signupResponse{NewUser: user.Email})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Username)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// IP-based throttling before any credential work.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	user, err := h.verifier.Verify(ctx, email, req.Password)
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			h.auditLoginFailed(ctx, nil, ip, ua, email, "not_found")
		case identity.IsBadPassword(err):
			h.auditLoginFailed(ctx, nil, ip, ua, email, "bad_password")
		case identity.IsInvalidInput(err):
		default:
			h.log.Error("auth.login.verify.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		h.metrics.login("fail")
		writeUnauthorized(w)
		return
	}

	pair, err := h.sessions.Login(ctx, user.EmailNorm, now)
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.login("success")
	h.auditLoginSuccess(ctx, user.ID, ip, ua, email)
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	presented, ok := bearerToken(r)
	if !ok {
		h.metrics.refresh("fail")
		writeUnauthorized(w)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	pair, err := h.sessions.Refresh(ctx, presented, now)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRevokedOrReused):
		// Reuse is a security signal, but the client sees the same 401.
		h.log.Warn("auth.refresh.reuse_detected", "ip", ipString(ip))
		h.auditRefreshReuse(ctx, ip, ua)
		h.metrics.refresh("reuse")
		writeUnauthorized(w)
		return
	case errors.Is(err, session.ErrUnauthenticated):
		h.metrics.refresh("fail")
		writeUnauthorized(w)
		return
	default:
		h.log.Error("auth.refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.refresh("success")
	h.auditRefreshSuccess(ctx, ip, ua)
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleSecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	presented, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	user, err := h.sessions.Authenticate(r.Context(), presented, time.Now().UTC())
	if err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			writeUnauthorized(w)
			return
		}
		h.log.Error("auth.secret.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, secretResponse{
		Message: "secret router",
		Owner:   user.Email,
	})
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}
