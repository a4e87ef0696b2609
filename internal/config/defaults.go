package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort             = ":8080"
	DefaultOrigin           = "http://localhost:8080"
	DefaultMaxMessageSize   = 4096
	DefaultSendBuffer       = 256
	DefaultRateLimitBurst   = 5
	DefaultRateLimitRefill  = time.Second
	DefaultSQLitePath       = "chat.db"
	DefaultMessagesBackend  = BackendSQLite
	DefaultPostgresPort     = 5432
	DefaultPostgresSSLMode  = "prefer"
	DefaultPostgresMaxConns = 10
	DefaultPostgresMinConns = 2
	DefaultSinkQueueSize    = 1024
	DefaultSinkWorkers      = 2
	DefaultSinkWriteTimeout = 5 * time.Second
	DefaultTokenTTL         = 24 * time.Hour
	DefaultIssuer           = "roomchat"
	DefaultBcryptCost       = 10
	DefaultLogLevel         = "info"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{DefaultOrigin}
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.Server.RateLimit.RefillInterval == 0 {
		c.Server.RateLimit.RefillInterval = DefaultRateLimitRefill
	}

	// Database defaults
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = DefaultSQLitePath
	}
	if c.Database.MessagesBackend == "" {
		c.Database.MessagesBackend = DefaultMessagesBackend
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultPostgresPort
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultPostgresMinConns
	}

	// Sink defaults
	if c.Sink.QueueSize == 0 {
		c.Sink.QueueSize = DefaultSinkQueueSize
	}
	if c.Sink.Workers == 0 {
		c.Sink.Workers = DefaultSinkWorkers
	}
	if c.Sink.WriteTimeout == 0 {
		c.Sink.WriteTimeout = DefaultSinkWriteTimeout
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultIssuer
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = DefaultBcryptCost
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
