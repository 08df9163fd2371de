package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a secret has no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables. When KEY
// is unset but KEY_FILE names a file, the trimmed file contents are used,
// which is how container orchestrators mount secrets.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator supplied path
	if err != nil {
		return "", fmt.Errorf("read secret file for %s: %w", key, err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%w: %s (empty file)", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// ApplySecrets overlays credentials from the secret store onto cfg. Missing
// secrets leave the current values alone.
func ApplySecrets(ctx context.Context, store SecretStore, cfg *Config) error {
	fields := []struct {
		key   string
		apply func(string)
	}{
		{"REWARDKIT_SQL_DSN", func(v string) { cfg.Storage.SQL.DSN = v }},
		{"REWARDKIT_REDIS_PASSWORD", func(v string) { cfg.Storage.Redis.Password = v }},
		{"REWARDKIT_SECURITY_API_KEYS", func(v string) {
			keys := strings.Split(v, ",")
			for i := range keys {
				keys[i] = strings.TrimSpace(keys[i])
			}
			cfg.Security.APIKeys = keys
		}},
	}
	for _, f := range fields {
		v, err := store.Get(ctx, f.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		f.apply(v)
	}
	return nil
}

// LoadSecretsFromEnv overlays credentials from REWARDKIT_* variables or
// their *_FILE counterparts.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return ApplySecrets(ctx, NewEnvironmentSecretStore(), c)
}
