// Package config provides centralized configuration management for the import
// server and the reference ledger. It loads configuration from environment
// variables with defaults and validates all settings on startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds the import server configuration.
type Config struct {
	Server   ServerConfig
	Batch    BatchConfig
	Upload   UploadConfig
	Receipt  ReceiptConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// LedgerConfig holds the reference batch endpoint configuration.
type LedgerConfig struct {
	Ledger   LedgerServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BatchConfig points the engine at the remote batch endpoint.
type BatchConfig struct {
	// EndpointURL is the base URL of the transaction store (required)
	EndpointURL string `env:"BATCH_ENDPOINT_URL" required:"true"`

	APIKey string `env:"BATCH_API_KEY"`

	// Timeout bounds one submission round trip (default: 60s)
	Timeout time.Duration `env:"BATCH_TIMEOUT" default:"60s"`
}

// UploadConfig holds import file settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of files parsed at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a load waits for a parse slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// LoadTimeout bounds parsing a single file (default: 2m)
	LoadTimeout time.Duration `env:"UPLOAD_LOAD_TIMEOUT" default:"2m"`

	// MaxRows caps the rows accepted from one file (default: 10000)
	MaxRows int `env:"UPLOAD_MAX_ROWS" default:"10000"`
}

// ReceiptConfig holds receipt attachment limits.
type ReceiptConfig struct {
	// MaxSize is the maximum receipt size in bytes (default: 5MB)
	MaxSize int64 `env:"RECEIPT_MAX_SIZE" default:"5242880"`

	// AllowedTypes lists accepted extensions; empty accepts all known types
	AllowedTypes []string `env:"RECEIPT_ALLOWED_TYPES"`
}

// SessionConfig holds import session lifecycle settings.
type SessionConfig struct {
	// IdleTTL is how long an untouched session survives (default: 30m)
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"30m"`

	// SweepSchedule is the cron spec for the idle sweeper (default: @every 1m)
	SweepSchedule string `env:"SESSION_SWEEP_SCHEDULE" default:"@every 1m"`

	// Max is the maximum number of live sessions (default: 1000)
	Max int `env:"SESSION_MAX" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for file and receipt uploads (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LedgerServerConfig holds the reference endpoint's listener and credentials.
type LedgerServerConfig struct {
	Host string `env:"LEDGER_HOST" default:"0.0.0.0"`
	Port int    `env:"LEDGER_PORT" default:"8090"`

	// APIKeys are the keys accepted on the batch endpoint; empty disables auth
	APIKeys []string `env:"LEDGER_API_KEYS"`

	// CategoryCacheSize bounds the category lookup cache (default: 512)
	CategoryCacheSize int `env:"LEDGER_CATEGORY_CACHE_SIZE" default:"512"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Addr returns the ledger listen address in host:port format.
func (c *LedgerServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
