package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StatusStrategyPassthrough = "passthrough"
	StatusStrategyDateDriven  = "date-driven"
)

// StatusStrategy selects how raw contract status text is resolved.
//
// Set via env:
// - STATUS_STRATEGY=passthrough (default) | date-driven
func StatusStrategy() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STATUS_STRATEGY")))
	if v == StatusStrategyDateDriven {
		return v
	}
	return StatusStrategyPassthrough
}

// TableCacheEnabled turns on the Redis read-through cache for source tables.
//
// Set via env:
// - ENABLE_TABLE_CACHE=true
func TableCacheEnabled() bool {
	return envBoolDefault("ENABLE_TABLE_CACHE", false)
}

// TableCacheTTL is TABLE_CACHE_TTL_SECONDS (default 60s, same as the sheet client default).
func TableCacheTTL() time.Duration {
	ttl := 60
	if v := strings.TrimSpace(os.Getenv("TABLE_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

// PersistRunHistory can switch off run/flag persistence even when a database is configured.
func PersistRunHistory() bool {
	return envBoolDefault("PERSIST_RUN_HISTORY", true)
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
