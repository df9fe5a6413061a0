// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/pkg/retry"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "lexgate.yaml"

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig           `yaml:"server" toml:"server"`
	Upstream   UpstreamConfig         `yaml:"upstream" toml:"upstream"`
	Auth       AuthConfig             `yaml:"auth" toml:"auth"`
	RateLimit  RateLimitConfig        `yaml:"rate_limit" toml:"rate_limit"`
	Cache      CacheConfig            `yaml:"cache" toml:"cache"`
	Validation ValidationConfig       `yaml:"validation" toml:"validation"`
	Usage      UsageConfig            `yaml:"usage" toml:"usage"`
	Retry      RetryConfig            `yaml:"retry" toml:"retry"`
	Guest      GuestConfig            `yaml:"guest" toml:"guest"`
	Plans      map[string]plan.Limits `yaml:"plans" toml:"plans"` // Overrides per tier
	Logging    LoggingConfig          `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig          `yaml:"metrics" toml:"metrics"`
	OpenAPI    OpenAPIConfig          `yaml:"openapi" toml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout"` // Streams are exempt
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Leave off unless a proxy in front overwrites those headers;
	// otherwise callers can pick their own guest rate limit key.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" toml:"trust_proxy_headers"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UpstreamConfig configures the model API.
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url" toml:"base_url"`
	APIKey          string        `yaml:"api_key" toml:"api_key"`
	Model           string        `yaml:"model" toml:"model"` // Overrides the plan model when set
	Version         string        `yaml:"anthropic_version" toml:"anthropic_version"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" toml:"idle_conn_timeout"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	Issuer    string        `yaml:"issuer" toml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl" toml:"token_ttl"` // Lifetime of tokens minted by the CLI
}

// RateLimitConfig configures the limiter instances and their store.
type RateLimitConfig struct {
	Backend         string        `yaml:"backend" toml:"backend"` // "memory" or "redis"
	RedisURL        string        `yaml:"redis_url" toml:"redis_url"`
	KeyPrefix       string        `yaml:"key_prefix" toml:"key_prefix"`
	Shards          int           `yaml:"shards" toml:"shards"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" toml:"cleanup_interval"`
	Chat            LimiterConfig `yaml:"chat" toml:"chat"`
	Guest           LimiterConfig `yaml:"guest" toml:"guest"`
}

// LimiterConfig configures one named limiter.
type LimiterConfig struct {
	MaxRequests   int           `yaml:"max_requests" toml:"max_requests"`
	Window        time.Duration `yaml:"window" toml:"window"`
	BlockDuration time.Duration `yaml:"block_duration" toml:"block_duration"`
}

// Limits returns the domain limiter config.
func (l LimiterConfig) Limits() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:   l.MaxRequests,
		Window:        l.Window,
		BlockDuration: l.BlockDuration,
	}
}

// CacheConfig configures the response caches.
type CacheConfig struct {
	CleanupInterval time.Duration       `yaml:"cleanup_interval" toml:"cleanup_interval"`
	General         CacheInstanceConfig `yaml:"general" toml:"general"`
	FAQ             CacheInstanceConfig `yaml:"faq" toml:"faq"`
}

// CacheInstanceConfig configures one cache.
type CacheInstanceConfig struct {
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
	MaxSize int           `yaml:"max_size" toml:"max_size"`
}

// ValidationConfig configures input limits.
type ValidationConfig struct {
	MaxInputLength int `yaml:"max_input_length" toml:"max_input_length"`
	MaxMessages    int `yaml:"max_messages" toml:"max_messages"`
}

// UsageConfig configures the usage ledger.
type UsageConfig struct {
	MaxRecords int `yaml:"max_records" toml:"max_records"`
}

// RetryConfig configures upstream retries.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" toml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" toml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" toml:"multiplier"`
	Jitter       float64       `yaml:"jitter" toml:"jitter"`
}

// Policy returns the upstream retry policy with configured values applied.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.UpstreamPolicy()
	p.MaxRetries = r.MaxRetries
	p.InitialDelay = r.InitialDelay
	p.MaxDelay = r.MaxDelay
	p.Multiplier = r.Multiplier
	p.Jitter = r.Jitter
	return p
}

// GuestConfig configures the unauthenticated /ask endpoint.
type GuestConfig struct {
	Enabled *bool `yaml:"enabled" toml:"enabled"` // Default: true
}

// IsEnabled reports whether guest questions are accepted.
func (g GuestConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" toml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path" toml:"path"`       // Custom path (default: /metrics)
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// PlanTable returns the built-in plan table with configured overrides.
func (c *Config) PlanTable() plan.Table {
	return plan.Default.Merge(c.Plans)
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for container deployments where no config file is needed.
//
// Environment variables:
//
//	LEXGATE_UPSTREAM_API_KEY      - Model API key (ANTHROPIC_API_KEY is also read)
//	LEXGATE_UPSTREAM_BASE_URL     - Model API base URL
//	LEXGATE_UPSTREAM_MODEL        - Model override for every plan
//	LEXGATE_AUTH_JWT_SECRET       - Token signing secret (required)
//	LEXGATE_SERVER_HOST           - Server host (default: 0.0.0.0)
//	LEXGATE_SERVER_PORT           - Server port (default: 8080)
//	LEXGATE_SERVER_TRUST_PROXY_HEADERS - Use X-Forwarded-For for client IPs (default: false)
//	LEXGATE_RATELIMIT_BACKEND     - memory or redis (default: memory)
//	LEXGATE_RATELIMIT_REDIS_URL   - Redis URL for the redis backend
//	LEXGATE_GUEST_ENABLED         - Accept guest questions on /ask (default: true)
//	LEXGATE_LOG_LEVEL             - debug, info, warn, error (default: info)
//	LEXGATE_LOG_FORMAT            - json or console (default: json)
//	LEXGATE_METRICS_ENABLED       - Enable /metrics endpoint
//	LEXGATE_OPENAPI_ENABLED       - Enable OpenAPI/Swagger
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	if !HasEnvConfig() {
		return nil, fmt.Errorf("no configuration found: provide %s or set LEXGATE_AUTH_JWT_SECRET", path)
	}
	return LoadFromEnv()
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("LEXGATE_AUTH_JWT_SECRET") != ""
}

func finish(cfg *Config) (*Config, error) {
	// Environment variables always override file-based configuration.
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("LEXGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LEXGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("LEXGATE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("LEXGATE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("LEXGATE_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	if v := os.Getenv("LEXGATE_SERVER_TRUST_PROXY_HEADERS"); v != "" {
		cfg.Server.TrustProxyHeaders = parseBool(v)
	}

	// Upstream configuration
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("LEXGATE_UPSTREAM_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("LEXGATE_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("LEXGATE_UPSTREAM_MODEL"); v != "" {
		cfg.Upstream.Model = v
	}
	envDuration("LEXGATE_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)

	// Auth configuration
	if v := os.Getenv("LEXGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LEXGATE_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}

	// Rate limit configuration
	if v := os.Getenv("LEXGATE_RATELIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = v
	}
	if v := os.Getenv("LEXGATE_RATELIMIT_REDIS_URL"); v != "" {
		cfg.RateLimit.RedisURL = v
	}
	if v := os.Getenv("LEXGATE_RATELIMIT_CHAT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Chat.MaxRequests = n
		}
	}
	if v := os.Getenv("LEXGATE_RATELIMIT_GUEST_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Guest.MaxRequests = n
		}
	}

	// Guest configuration
	if v := os.Getenv("LEXGATE_GUEST_ENABLED"); v != "" {
		enabled := parseBool(v)
		cfg.Guest.Enabled = &enabled
	}

	// Logging configuration
	if v := os.Getenv("LEXGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LEXGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("LEXGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("LEXGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("LEXGATE_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.Server.RequestTimeout + 10*time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Upstream.Version == "" {
		cfg.Upstream.Version = "2023-06-01"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 60 * time.Second
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = 100
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = 90 * time.Second
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "lexgate"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	rl := &cfg.RateLimit
	if rl.Backend == "" {
		rl.Backend = "memory"
	}
	if rl.KeyPrefix == "" {
		rl.KeyPrefix = "lexgate:rl:"
	}
	if rl.Shards == 0 {
		rl.Shards = 32
	}
	if rl.CleanupInterval == 0 {
		rl.CleanupInterval = time.Hour
	}
	limiterDefaults(&rl.Chat, 20, time.Minute, 5*time.Minute)
	limiterDefaults(&rl.Guest, 5, time.Minute, 15*time.Minute)

	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = time.Hour
	}
	if cfg.Cache.General.TTL == 0 {
		cfg.Cache.General.TTL = 12 * time.Hour
	}
	if cfg.Cache.General.MaxSize == 0 {
		cfg.Cache.General.MaxSize = 1000
	}
	if cfg.Cache.FAQ.TTL == 0 {
		cfg.Cache.FAQ.TTL = 7 * 24 * time.Hour
	}
	if cfg.Cache.FAQ.MaxSize == 0 {
		cfg.Cache.FAQ.MaxSize = 500
	}

	if cfg.Validation.MaxInputLength == 0 {
		cfg.Validation.MaxInputLength = 10000
	}
	if cfg.Validation.MaxMessages == 0 {
		cfg.Validation.MaxMessages = 50
	}

	if cfg.Usage.MaxRecords == 0 {
		cfg.Usage.MaxRecords = 10000
	}

	def := retry.UpstreamPolicy()
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = def.MaxRetries
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = def.InitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = def.Multiplier
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = def.Jitter
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func limiterDefaults(l *LimiterConfig, max int, window, block time.Duration) {
	if l.MaxRequests == 0 {
		l.MaxRequests = max
	}
	if l.Window == 0 {
		l.Window = window
	}
	if l.BlockDuration == 0 {
		l.BlockDuration = block
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch cfg.RateLimit.Backend {
	case "memory":
	case "redis":
		if cfg.RateLimit.RedisURL == "" {
			return fmt.Errorf("rate_limit.redis_url is required when rate_limit.backend is 'redis'")
		}
	default:
		return fmt.Errorf("rate_limit.backend must be 'memory' or 'redis', got %q", cfg.RateLimit.Backend)
	}

	for name, l := range map[string]LimiterConfig{"chat": cfg.RateLimit.Chat, "guest": cfg.RateLimit.Guest} {
		if l.MaxRequests < 0 || l.Window < 0 || l.BlockDuration < 0 {
			return fmt.Errorf("rate_limit.%s values must not be negative", name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter >= 1 {
		return fmt.Errorf("retry.jitter must be in [0, 1)")
	}

	for name, l := range cfg.Plans {
		if plan.ParseTier(name) != plan.Tier(strings.ToLower(name)) {
			return fmt.Errorf("plans.%s: unknown tier", name)
		}
		if l.RequestsPerMinute < 0 || l.MaxTokensPerRequest < 0 || l.MaxConversationLength < 0 || l.DailyTokenQuota < 0 {
			return fmt.Errorf("plans.%s: limits must not be negative", name)
		}
	}

	return nil
}
