// Package config loads and validates console configuration from YAML files,
// an optional dotenv file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Session       SessionConfig       `yaml:"session"`
	Access        AccessConfig        `yaml:"access"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// BackendConfig describes the ERP REST backend.
type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	LoginPath      string               `yaml:"login_path"`
	MePath         string               `yaml:"me_path"`
	LogoutPath     string               `yaml:"logout_path"`
	Pagination     PaginationConfig     `yaml:"pagination"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	Schema         SchemaConfig         `yaml:"schema"`
}

// PaginationConfig names the query parameters the backend pages with.
// Resource definitions may override them.
type PaginationConfig struct {
	PageParam       string `yaml:"page_param"`
	SizeParam       string `yaml:"size_param"`
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
}

// CircuitBreakerConfig describes circuit breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RetryConfig describes retry settings. Only idempotent requests that failed
// before the backend answered are retried.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
}

// SchemaConfig enables response validation against the backend's OpenAPI
// document. Mode is one of off, warn or strict.
type SchemaConfig struct {
	Mode     string `yaml:"mode"`
	SpecFile string `yaml:"spec_file"`
}

// SessionConfig describes browser sessions.
type SessionConfig struct {
	CookieName    string        `yaml:"cookie_name"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	SigningKeyEnv string        `yaml:"signing_key_env"`
	TTL           time.Duration `yaml:"ttl"`
	SignInPath    string        `yaml:"sign_in_path"`
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	Store         StoreConfig   `yaml:"store"`
}

// StoreConfig describes session persistence. Driver is memory, redis or
// postgres.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	AddrEnv         string        `yaml:"addr_env"`
	DB              int           `yaml:"db"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AccessConfig describes the role policy.
type AccessConfig struct {
	PolicyFile  string      `yaml:"policy_file"`
	WatchPolicy bool        `yaml:"watch_policy"`
	Cache       CacheConfig `yaml:"cache"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// DefinitionsConfig describes where to find resource definition files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// DashboardConfig lists the backend endpoints feeding the dashboard.
type DashboardConfig struct {
	MetricsPath   string        `yaml:"metrics_path"`
	SalesPath     string        `yaml:"sales_path"`
	WarehousePath string        `yaml:"warehouse_path"`
	StockPath     string        `yaml:"stock_path"`
	PartTimeout   time.Duration `yaml:"part_timeout"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// LogFileConfig enables a rotated log file in addition to stderr.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id", "X-Original-Path"},
				MaxAge:         86400,
			},
		},
		Backend: BackendConfig{
			Timeout:    15 * time.Second,
			LoginPath:  "/api/auth/login",
			MePath:     "/api/auth/me",
			LogoutPath: "/api/auth/logout",
			Pagination: PaginationConfig{
				PageParam:       "pageIndex",
				SizeParam:       "pageSize",
				DefaultPageSize: 10,
				MaxPageSize:     100,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       2,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
			},
			Schema: SchemaConfig{Mode: "off"},
		},
		Session: SessionConfig{
			CookieName:    "erp_session",
			CookieSecure:  true,
			SigningKeyEnv: "ERPCONSOLE_SESSION_KEY",
			TTL:           8 * time.Hour,
			SignInPath:    "/signin",
			RedirectDelay: 1500 * time.Millisecond,
			Store: StoreConfig{
				Driver:          "memory",
				MaxOpenConns:    10,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Access: AccessConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 1024,
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
		},
		Dashboard: DashboardConfig{
			MetricsPath:   "/api/dashboard/metrics",
			SalesPath:     "/api/dashboard/sales-chart",
			WarehousePath: "/api/warehouse/statistics",
			StockPath:     "/api/warehouse/stock-history",
			PartTimeout:   5 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			LogFile: LogFileConfig{
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 28,
			},
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	if c.Backend.LoginPath == "" {
		errs = append(errs, "backend.login_path is required")
	}
	if c.Backend.Pagination.DefaultPageSize < 1 {
		errs = append(errs, "backend.pagination.default_page_size must be at least 1")
	}
	switch c.Backend.Schema.Mode {
	case "", "off", "warn", "strict":
	default:
		errs = append(errs, "backend.schema.mode must be off, warn or strict")
	}
	if c.Backend.Schema.Mode == "warn" || c.Backend.Schema.Mode == "strict" {
		if c.Backend.Schema.SpecFile == "" {
			errs = append(errs, "backend.schema.spec_file is required when schema validation is enabled")
		}
	}
	switch c.Session.Store.Driver {
	case "memory", "redis", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("session.store.driver %q is not supported", c.Session.Store.Driver))
	}
	if c.Session.SignInPath == "" || !strings.HasPrefix(c.Session.SignInPath, "/") {
		errs = append(errs, "session.sign_in_path must be an absolute path")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if c.Session.RedirectDelay < 0 {
		errs = append(errs, "session.redirect_delay must not be negative")
	}
	if c.Access.PolicyFile == "" {
		errs = append(errs, "access.policy_file is required")
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads ERPCONSOLE_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ERPCONSOLE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ERPCONSOLE_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("ERPCONSOLE_SESSION_STORE_DRIVER"); v != "" {
		cfg.Session.Store.Driver = v
	}
	if v := os.Getenv("ERPCONSOLE_SESSION_COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.CookieSecure = b
		}
	}
	if v := os.Getenv("ERPCONSOLE_ACCESS_POLICY_FILE"); v != "" {
		cfg.Access.PolicyFile = v
	}
	if v := os.Getenv("ERPCONSOLE_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("ERPCONSOLE_SCHEMA_MODE"); v != "" {
		cfg.Backend.Schema.Mode = v
	}
}
