package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	// BaseURL is the externally visible origin, used to derive OAuth
	// callback URLs. Derived from HTTPAddr when unset.
	BaseURL string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, AUTHGATE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("AUTHGATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("AUTHGATE_LOG_LEVEL", "info"),
		LogFormat: EnvString("AUTHGATE_LOG_FORMAT", "json"),

		BaseURL: EnvString("AUTHGATE_BASE_URL", ""),

		ReadHeaderTimeout: EnvDuration("AUTHGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AUTHGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AUTHGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AUTHGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("AUTHGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("AUTHGATE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("AUTHGATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("AUTHGATE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("AUTHGATE_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("AUTHGATE_REQUIRE_TOKEN_HMAC", false),
	}
}
