package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
server:
  host: "127.0.0.1"
  port: 8080
storage:
  dir: "/var/lib/gymdex"
catalog:
  base_url: "https://catalog.example.com"
  api_key: "catalog-key"
  timeout_sec: 10
auth:
  api_key: "test-key-123"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Dir != "/var/lib/gymdex" {
		t.Errorf("storage.dir = %q, want %q", cfg.Storage.Dir, "/var/lib/gymdex")
	}
	if cfg.Catalog.BaseURL != "https://catalog.example.com" {
		t.Errorf("catalog.base_url = %q, want %q", cfg.Catalog.BaseURL, "https://catalog.example.com")
	}
	if cfg.Catalog.Timeout() != 10*time.Second {
		t.Errorf("catalog timeout = %v, want 10s", cfg.Catalog.Timeout())
	}
	if cfg.Auth.APIKey != "test-key-123" {
		t.Errorf("auth.api_key = %q, want %q", cfg.Auth.APIKey, "test-key-123")
	}
}

// TestEnvOverride verifies that GYMDEX_ env vars take precedence over YAML values.
// This ensures deployments can override config via environment.
func TestEnvOverride(t *testing.T) {
	t.Setenv("GYMDEX_STORAGE_DIR", "/tmp/override")
	t.Setenv("GYMDEX_SERVER_PORT", "9999")
	t.Setenv("GYMDEX_AUTH_API_KEY", "env-key")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Dir != "/tmp/override" {
		t.Errorf("storage.dir = %q, want %q", cfg.Storage.Dir, "/tmp/override")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Auth.APIKey != "env-key" {
		t.Errorf("auth.api_key = %q, want %q", cfg.Auth.APIKey, "env-key")
	}
	// Unchanged fields should keep YAML values
	if cfg.Catalog.APIKey != "catalog-key" {
		t.Errorf("catalog.api_key = %q, want %q", cfg.Catalog.APIKey, "catalog-key")
	}
}

// TestValidationMissingPort verifies that missing required fields produce a clear error.
func TestValidationMissingPort(t *testing.T) {
	yaml := `
server:
  host: "127.0.0.1"
storage:
  dir: "/var/lib/gymdex"
catalog:
  base_url: "https://catalog.example.com"
auth:
  api_key: "key"
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing port")
	}
}

// TestValidationMissingAPIKey verifies that a missing API key is rejected.
// Without it the mutating endpoints would be unprotected.
func TestValidationMissingAPIKey(t *testing.T) {
	yaml := `
server:
  port: 8080
storage:
  dir: "/var/lib/gymdex"
catalog:
  base_url: "https://catalog.example.com"
auth: {}
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing api_key")
	}
}

// TestStoragePaths verifies the derived file layout under the data dir.
func TestStoragePaths(t *testing.T) {
	s := StorageConfig{Dir: "/data"}
	if got := s.DatabasePath(); got != filepath.Join("/data", "training.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := s.BlobDir(); got != filepath.Join("/data", "blobs") {
		t.Errorf("BlobDir() = %q", got)
	}
}

// TestCatalogTimeoutDefault verifies an unset timeout falls back to 30s.
func TestCatalogTimeoutDefault(t *testing.T) {
	c := CatalogConfig{}
	if got := c.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", got)
	}
}

// TestLoadMissingFile verifies that a missing config file returns a clear error.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
