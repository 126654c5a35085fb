package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore resolves sensitive values (DSNs, API keys) from an external
// source at startup.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, fallback string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

// NewEnvironmentSecretStore returns a store backed by os.Getenv.
func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{}
}

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s is not set", key)
	}
	return value, nil
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// LoadSecretsFromEnv overlays sensitive values from the environment. The
// regular env loader handles non-secret settings; this covers the ones
// that should never live in config files.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	store := NewEnvironmentSecretStore()

	c.Storage.SQL.DSN = store.GetWithDefault(ctx, "QUESTPHONE_SQL_DSN", c.Storage.SQL.DSN)
	c.Storage.Redis.Password = store.GetWithDefault(ctx, "QUESTPHONE_REDIS_PASSWORD", c.Storage.Redis.Password)

	if keys := store.GetWithDefault(ctx, "QUESTPHONE_API_KEYS", ""); keys != "" {
		c.Security.APIKeys = splitAndTrim(keys)
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
