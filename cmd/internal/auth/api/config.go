package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	LoginIPMax    int
	LoginIPWindow time.Duration

	// FlowCookieName carries the opaque federated flow ID between the
	// initiate redirect and the provider callback.
	FlowCookieName string
	CookieSecure   bool
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:     envBool("AUTHGATE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("AUTHGATE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginIPMax:     envInt("AUTHGATE_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:  envDuration("AUTHGATE_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		FlowCookieName: envString("AUTHGATE_AUTH_FLOW_COOKIE_NAME", "authgate_flow"),
		CookieSecure:   envBool("AUTHGATE_AUTH_COOKIE_SECURE", false),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = 20
	}
	if cfg.FlowCookieName == "" {
		cfg.FlowCookieName = "authgate_flow"
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
