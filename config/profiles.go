package config

import (
	"fmt"
	"time"

	"rewardkit/adapters/sqlx"
)

// LoadProfile returns the defaults for a named deployment profile, with
// environment overrides applied and the result validated.
func LoadProfile(name string) (*Config, error) {
	var cfg *Config
	switch name {
	case "development":
		cfg = developmentProfile()
	case "testing":
		cfg = testingProfile()
	case "staging":
		cfg = stagingProfile()
	case "production":
		cfg = productionProfile()
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg.Profile = name
	return finalize(cfg)
}

func developmentProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvDevelopment
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	return cfg
}

// testingProfile dispatches events synchronously so assertions can follow
// a call directly.
func testingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvTesting
	cfg.Engine.DispatchMode = "sync"
	cfg.Logging.Level = "warn"
	cfg.Metrics.CollectSystem = false
	return cfg
}

func stagingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvStaging
	cfg.Storage.Adapter = "redis"
	cfg.Metrics.Enabled = true
	cfg.Server.CORSOrigin = ""
	return cfg
}

func productionProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.Storage.Adapter = "sql"
	cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
	cfg.Storage.SQL.MaxOpenConns = 50
	cfg.Storage.SQL.MaxIdleConns = 10
	cfg.Metrics.Enabled = true
	cfg.Server.CORSOrigin = ""
	cfg.Server.ShutdownTimeout = 45 * time.Second
	return cfg
}
