package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Auth    AuthConfig    `yaml:"auth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig points at the on-device data directory: the SQLite file
// lives directly in it, the backup blob and preferences under blobs/.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// CatalogConfig describes the remote routine/exercise catalog service.
type CatalogConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// DatabasePath returns the SQLite file path inside the storage dir.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.Dir, "training.db")
}

// BlobDir returns the directory backing the key/value slot.
func (s StorageConfig) BlobDir() string {
	return filepath.Join(s.Dir, "blobs")
}

// Timeout returns the catalog request timeout, defaulting to 30s.
func (c CatalogConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix GYMDEX_ and underscore-separated
// paths:
//
//	GYMDEX_SERVER_HOST, GYMDEX_SERVER_PORT,
//	GYMDEX_STORAGE_DIR,
//	GYMDEX_CATALOG_BASE_URL, GYMDEX_CATALOG_API_KEY,
//	GYMDEX_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GYMDEX_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GYMDEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GYMDEX_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("GYMDEX_CATALOG_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := os.Getenv("GYMDEX_CATALOG_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("GYMDEX_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return nil
}
