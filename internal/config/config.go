// Package config loads the relay's runtime configuration from an optional
// YAML file with environment-variable overrides, following the teacher's
// plain-struct pattern (no config DSL anywhere in the examples pack).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for the relay service.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	Redis RedisConfig `yaml:"redis"`
	Mongo MongoConfig `yaml:"mongo"`

	// SecretKeyBase64 is the standard-base64-encoded 32-byte AES key used by
	// internal/crypto to encrypt stored provider secrets.
	SecretKeyBase64 string `yaml:"secret_key"`

	Providers map[string]ProviderConfig `yaml:"providers"`
}

// RedisConfig configures the event log's Redis connection.
type RedisConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

// MongoConfig configures the session/message document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// ProviderConfig holds a per-provider base URL and request timeout,
// overridable independently of the provider's stored API key.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration's zero-value defaults, applied before
// a file or environment overrides are read.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Redis:    RedisConfig{URL: "redis://localhost:6379", PoolSize: 10},
		Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "rschat"},
	}
}

// Load reads Default(), overlays path (if non-empty and present) as YAML,
// then applies environment-variable overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAY_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("RELAY_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("RELAY_REDIS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.PoolSize = n
		}
	}
	if v := os.Getenv("RELAY_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("RELAY_MONGO_DATABASE"); v != "" {
		cfg.Mongo.Database = v
	}
	if v := os.Getenv("RELAY_SECRET_KEY"); v != "" {
		cfg.SecretKeyBase64 = v
	}
}
