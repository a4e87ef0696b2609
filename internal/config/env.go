package config

import (
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with environment variables. Unparseable or
// non-positive numeric values are ignored.
func (c *Config) applyEnv(lookup lookupFunc) {
	if port, ok := lookup("SERVER_PORT"); ok && port != "" {
		c.Server.Port = port
	}
	if origins, ok := lookup("ALLOWED_ORIGINS"); ok && origins != "" {
		c.Server.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize, ok := lookup("MAX_MESSAGE_SIZE"); ok {
		c.Server.MaxMessageSize = parseInt64Value(maxSize, c.Server.MaxMessageSize)
	}
	if burst, ok := lookup("RATE_LIMIT_BURST"); ok {
		c.Server.RateLimit.Burst = parseIntValue(burst, c.Server.RateLimit.Burst)
	}
	if interval, ok := lookup("RATE_LIMIT_REFILL_INTERVAL"); ok {
		c.Server.RateLimit.RefillInterval = parseSeconds(interval, c.Server.RateLimit.RefillInterval)
	}
	if path, ok := lookup("SQLITE_PATH"); ok && path != "" {
		c.Database.SQLitePath = path
	}
	if backend, ok := lookup("MESSAGES_BACKEND"); ok && backend != "" {
		c.Database.MessagesBackend = strings.ToLower(strings.TrimSpace(backend))
	}
	if password, ok := lookup("POSTGRES_PASSWORD"); ok && password != "" {
		c.Database.Postgres.Password = password
	}
	if secret, ok := lookup("JWT_SECRET"); ok && secret != "" {
		c.Auth.JWTSecret = secret
	}
	if level, ok := lookup("LOG_LEVEL"); ok && level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
