package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envLookup returns the trimmed value and whether it was non-empty.
func envLookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// EnvString reads a string env var, falling back to def when unset.
func EnvString(key, def string) string {
	if v, ok := envLookup(key); ok {
		return v
	}
	return def
}

// EnvBool reads a bool env var; unparseable values fall back to def.
func EnvBool(key string, def bool) bool {
	v, ok := envLookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt reads a positive int env var; zero, negative, or unparseable
// values fall back to def.
func EnvInt(key string, def int) int {
	v, ok := envLookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvInt32 reads a non-negative int32 env var with a default.
func EnvInt32(key string, def int32) int32 {
	v, ok := envLookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	v, ok := envLookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
