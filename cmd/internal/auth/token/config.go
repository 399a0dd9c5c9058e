package token

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for token issuance and verification.
//
// It is environment-driven so deployments can tune lifetimes and issuer
// identity without code changes. The signing secret has no default and no
// fallback: a missing or short secret fails startup.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// AccessTTL is the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh tokens. Must exceed AccessTTL.
	RefreshTTL time.Duration

	// Leeway is the allowed clock skew during expiry validation.
	Leeway time.Duration

	// Secret is the HS256 signing key. Minimum 32 bytes.
	Secret []byte
}

// DefaultConfig returns secure defaults; the secret must still be provided.
func DefaultConfig() Config {
	return Config{
		Issuer:     "authgate",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Leeway:     30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - AUTHGATE_JWT_SECRET (min 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - AUTHGATE_AUTH_ISSUER
//   - AUTHGATE_AUTH_ACCESS_TTL
//   - AUTHGATE_AUTH_REFRESH_TTL
//   - AUTHGATE_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTHGATE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("AUTHGATE_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("AUTHGATE_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("AUTHGATE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.Leeway = d
	}

	secret := strings.TrimSpace(os.Getenv("AUTHGATE_JWT_SECRET"))
	if secret == "" {
		return Config{}, ErrConfig
	}
	cfg.Secret = []byte(secret)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return ErrConfig
	}
	if len(c.Secret) < 32 {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.Leeway < 0 {
		return ErrConfig
	}
	// A refresh token no longer-lived than an access token makes
	// rotation pointless.
	if c.RefreshTTL <= c.AccessTTL {
		return ErrConfig
	}
	return nil
}
