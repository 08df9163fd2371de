package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rewardkit/adapters/redis"
	"rewardkit/adapters/sqlx"
	"rewardkit/core"
	"rewardkit/engine"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"REWARDKIT_ENV"`
	Profile     string      `json:"profile" env:"REWARDKIT_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// XP paid per activity
	Rewards RewardsConfig `json:"rewards"`

	// Event delivery settings
	Engine EngineConfig `json:"engine"`

	// Outbound integrations
	Integrations IntegrationsConfig `json:"integrations"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"REWARDKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"REWARDKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"REWARDKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"REWARDKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"REWARDKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"REWARDKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"REWARDKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"REWARDKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"REWARDKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"REWARDKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"REWARDKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"REWARDKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"REWARDKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" env:"REWARDKIT_METRICS_ENABLED"`
	Address       string `json:"address" env:"REWARDKIT_METRICS_ADDR"`
	Path          string `json:"path" env:"REWARDKIT_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" env:"REWARDKIT_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys []string `json:"api_keys,omitempty" env:"REWARDKIT_SECURITY_API_KEYS"`
}

// RewardsConfig holds the XP granted per recorded activity
type RewardsConfig struct {
	Signup        int64 `json:"signup" env:"REWARDKIT_REWARDS_SIGNUP"`
	GameSubmitted int64 `json:"game_submitted" env:"REWARDKIT_REWARDS_GAME_SUBMITTED"`
	VoteCast      int64 `json:"vote_cast" env:"REWARDKIT_REWARDS_VOTE_CAST"`
	CommentPosted int64 `json:"comment_posted" env:"REWARDKIT_REWARDS_COMMENT_POSTED"`
}

// ActivityRewards converts the section into the engine's reward table.
func (r RewardsConfig) ActivityRewards() engine.ActivityRewards {
	return engine.ActivityRewards{
		core.ActivitySignup:        r.Signup,
		core.ActivityGameSubmitted: r.GameSubmitted,
		core.ActivityVoteCast:      r.VoteCast,
		core.ActivityCommentPosted: r.CommentPosted,
	}
}

// EngineConfig holds event bus configuration
type EngineConfig struct {
	// DispatchMode is "sync" or "async".
	DispatchMode string `json:"dispatch_mode" env:"REWARDKIT_ENGINE_DISPATCH_MODE"`
}

// IntegrationsConfig holds outbound integration settings
type IntegrationsConfig struct {
	WebhookURLs    []string      `json:"webhook_urls,omitempty" env:"REWARDKIT_INTEGRATIONS_WEBHOOK_URLS"`
	WebhookTimeout time.Duration `json:"webhook_timeout" env:"REWARDKIT_INTEGRATIONS_WEBHOOK_TIMEOUT"`
}

// Load builds the configuration from defaults and REWARDKIT_* variables
func Load() (*Config, error) {
	return finalize(DefaultConfig())
}

// finalize applies environment overrides on top of cfg and validates it.
func finalize(cfg *Config) (*Config, error) {
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile reads a JSON file over the defaults. Environment variables
// still take precedence over the file.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return finalize(cfg)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/rewardkit.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			APIKeys: []string{},
		},
		Rewards: RewardsConfig{
			Signup:        10,
			GameSubmitted: 0,
			VoteCast:      5,
			CommentPosted: 2,
		},
		Engine: EngineConfig{
			DispatchMode: "async",
		},
		Integrations: IntegrationsConfig{
			WebhookTimeout: 5 * time.Second,
		},
	}
}

// Validate validates every section and reports all problems at once
func (c *Config) Validate() error {
	var p problems
	if c.Environment == "" {
		p.addf("environment cannot be empty")
	}
	p.nested("server config", c.Server.Validate())
	p.nested("storage config", c.Storage.Validate())
	p.nested("logging config", c.Logging.Validate())
	p.nested("metrics config", c.Metrics.Validate())
	p.nested("security config", c.Security.Validate())
	p.nested("rewards config", c.Rewards.Validate())
	p.nested("engine config", c.Engine.Validate())
	p.nested("integrations config", c.Integrations.Validate())
	return p.err()
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
