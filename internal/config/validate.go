package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all values are usable. It expects defaults applied.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Server.MaxMessageSize < 1 {
		return errors.New("server.max_message_size must be >= 1")
	}
	if c.Server.SendBuffer < 1 {
		return errors.New("server.send_buffer must be >= 1")
	}
	if c.Server.RateLimit.Burst < 1 {
		return errors.New("server.rate_limit.burst must be >= 1")
	}
	if c.Server.RateLimit.RefillInterval <= 0 {
		return errors.New("server.rate_limit.refill_interval must be positive")
	}

	switch c.Database.MessagesBackend {
	case BackendSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required")
		}
	case BackendPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database.messages_backend must be %q or %q, got %q",
			BackendSQLite, BackendPostgres, c.Database.MessagesBackend)
	}

	if c.Sink.QueueSize < 1 {
		return errors.New("sink.queue_size must be >= 1")
	}
	if c.Sink.Workers < 1 {
		return errors.New("sink.workers must be >= 1")
	}
	if c.Sink.WriteTimeout <= 0 {
		return errors.New("sink.write_timeout must be positive")
	}

	if c.Auth.RequireToken && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth.require_token is set")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a log.level value onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", level)
	}
}
