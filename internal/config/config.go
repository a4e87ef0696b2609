package config

import "time"

// Config is the root configuration for the chat server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sink     SinkConfig     `yaml:"sink"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the realtime gateway and HTTP listener settings.
type ServerConfig struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	SendBuffer     int             `yaml:"send_buffer"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines the per-connection token bucket.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// DatabaseConfig selects where users and messages are stored.
// Users always live in SQLite; messages go to SQLite or Postgres.
type DatabaseConfig struct {
	SQLitePath      string         `yaml:"sqlite_path"`
	MessagesBackend string         `yaml:"messages_backend"`
	Postgres        PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds connection settings for the Postgres message archive.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SinkConfig tunes the asynchronous persistence sink.
type SinkConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	Workers      int           `yaml:"workers"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig holds signup/login and handshake token settings.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	Issuer       string        `yaml:"issuer"`
	BcryptCost   int           `yaml:"bcrypt_cost"`
	RequireToken bool          `yaml:"require_token"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Messages backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)
