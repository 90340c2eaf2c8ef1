package main

import (
	"fmt"
	"time"

	"github.com/fluxorio/todoapi/pkg/config"
	"github.com/fluxorio/todoapi/pkg/db"
)

// EnvPrefix prefixes every environment override, e.g. TODOAPI_AUTH_SECRET_KEY
const EnvPrefix = "TODOAPI"

// AppConfig is the server configuration
type AppConfig struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Tokens     TokensConfig     `yaml:"tokens" json:"tokens"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr" json:"addr"`
	MaxCCU             int           `yaml:"max_ccu" json:"max_ccu"`
	UtilizationPercent int           `yaml:"utilization_percent" json:"utilization_percent"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	AllowedOrigins     []string      `yaml:"allowed_origins" json:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate" json:"auto_migrate"`
}

type AuthConfig struct {
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Issuer    string `yaml:"issuer" json:"issuer"`
}

type TokensConfig struct {
	AccessTTL              time.Duration `yaml:"access_ttl" json:"access_ttl"`
	RefreshTTL             time.Duration `yaml:"refresh_ttl" json:"refresh_ttl"`
	BlacklistPurgeInterval time.Duration `yaml:"blacklist_purge_interval" json:"blacklist_purge_interval"`
}

// RedisConfig enables the blacklist cache when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Path           string        `yaml:"path" json:"path"`
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int  `yaml:"burst" json:"burst"`
}

type PaginationConfig struct {
	PageSize    int `yaml:"page_size" json:"page_size"`
	MaxPageSize int `yaml:"max_page_size" json:"max_page_size"`
}

// DefaultConfig returns a configuration that runs against a local SQLite file.
// The secret key has no default.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:               ":8080",
			MaxCCU:             5000,
			UtilizationPercent: 67,
			RequestTimeout:     30 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			AllowedOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          db.DriverSQLite,
			DSN:             "todoapi.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Tokens: TokensConfig{
			AccessTTL:              30 * time.Minute,
			RefreshTTL:             7 * 24 * time.Hour,
			BlacklistPurgeInterval: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Path:           "/metrics",
			UpdateInterval: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			Burst:             100,
		},
		Pagination: PaginationConfig{
			PageSize:    20,
			MaxPageSize: 100,
		},
	}
}

// loadConfig reads path (YAML or JSON, optional) over the defaults, applies
// TODOAPI_* overrides and validates the result
func loadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()
	if err := config.LoadOptional(path, EnvPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *AppConfig) Validate() error {
	err := config.Validate(c,
		config.RequiredFields("Auth.SecretKey", "Database.Driver", "Database.DSN", "Server.Addr"),
		config.StringLengthValidator("Auth.SecretKey", 16, 512),
		config.OneOfValidator("Database.Driver", db.DriverPostgres, db.DriverPgx, db.DriverSQLite),
		config.OneOfValidator("Log.Level", "debug", "info", "warn", "error"),
		config.OneOfValidator("Log.Format", "text", "json"),
		config.RangeValidator("Server.MaxCCU", 1, 1_000_000),
		config.RangeValidator("Server.UtilizationPercent", 1, 100),
		config.RangeValidator("Pagination.PageSize", 1, 1000),
		config.RangeValidator("Pagination.MaxPageSize", 1, 1000),
	)
	if err != nil {
		return err
	}
	if c.Pagination.PageSize > c.Pagination.MaxPageSize {
		return fmt.Errorf("pagination.page_size %d exceeds max_page_size %d", c.Pagination.PageSize, c.Pagination.MaxPageSize)
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	return nil
}
