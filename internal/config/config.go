// Package config loads service settings from the environment and the
// spreadsheet column layout from an optional YAML file. Everything is
// validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Merge    MergeConfig
	Store    StoreConfig
	Sync     SyncConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so SSE progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the record store connection. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL was configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// MergeConfig controls merge runs.
type MergeConfig struct {
	// LayoutFile is an optional YAML column layout; built-in defaults otherwise.
	LayoutFile string `env:"MERGE_LAYOUT_FILE"`

	// Start rows and yield cadence override the layout when >= 0 / > 0.
	GuarantorStartRow int `env:"MERGE_GUARANTOR_START_ROW" default:"-1"`
	ClientStartRow    int `env:"MERGE_CLIENT_START_ROW" default:"-1"`
	YieldEvery        int `env:"MERGE_YIELD_EVERY" default:"0"`

	// MaxFileSize bounds each uploaded spreadsheet (default: 50MB).
	MaxFileSize int64 `env:"MERGE_MAX_FILE_SIZE" default:"52428800"`

	MaxConcurrent int           `env:"MERGE_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"MERGE_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"MERGE_TIMEOUT" default:"5m"`

	// ResultTTL is how long a finished run stays downloadable.
	ResultTTL time.Duration `env:"MERGE_RESULT_TTL" default:"15m"`

	OutputName string `env:"MERGE_OUTPUT_NAME" default:"Updated Guarantor Info.xlsx"`
}

// StoreConfig controls writes to the record store.
type StoreConfig struct {
	BatchSize int `env:"STORE_BATCH_SIZE" default:"100"`
}

// SyncConfig controls importing records from a remote JSON feed.
type SyncConfig struct {
	FeedURL string `env:"SYNC_FEED_URL"`

	// Interval of 0 disables periodic sync; manual sync still works.
	Interval time.Duration `env:"SYNC_INTERVAL" default:"0s"`
	Timeout  time.Duration `env:"SYNC_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// MergeLimit is requests per minute for POST /api/merge.
	MergeLimit int `env:"RATE_LIMIT_MERGE" default:"10"`
}

// SecurityConfig holds response hardening settings.
type SecurityConfig struct {
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`  // debug, info, warn, error
	Format string `env:"LOG_FORMAT" default:"text"` // text or json
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
