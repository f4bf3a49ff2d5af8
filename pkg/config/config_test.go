package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirWithConfig(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirWithConfig(t, `
port: "8090"
env: "test"
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
redis:
  host: "redis.example.com"
  port: 6379
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")

	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host from YAML, got %s", cfg.Database.Host)
	}
	if cfg.Redis.Host != "redis.example.com" {
		t.Errorf("expected Redis.Host from YAML, got %s", cfg.Redis.Host)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
}

func TestLoad_DerivesBaseURL(t *testing.T) {
	chdirWithConfig(t, `
port: "8090"
`)

	os.Unsetenv("BASE_URL")
	os.Unsetenv("PORT")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8090" {
		t.Errorf("expected derived BaseURL http://localhost:8090, got %s", cfg.BaseURL)
	}
}

func TestParseWebhookEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "empty",
			input:    "",
			expected: map[string]string{},
		},
		{
			name:  "single endpoint",
			input: "https://consumer.example/hook=s3cret",
			expected: map[string]string{
				"https://consumer.example/hook": "s3cret",
			},
		},
		{
			name:  "multiple endpoints with spaces",
			input: "https://a.example/hook=key1, https://b.example/hook=key2",
			expected: map[string]string{
				"https://a.example/hook": "key1",
				"https://b.example/hook": "key2",
			},
		},
		{
			name:  "secret containing equals sign",
			input: "https://a.example/hook=ab==cd",
			expected: map[string]string{
				"https://a.example/hook": "ab==cd",
			},
		},
		{
			name:     "missing secret skipped",
			input:    "https://a.example/hook",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseWebhookEndpoints(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d endpoints, got %d", len(tt.expected), len(got))
			}
			for url, secret := range tt.expected {
				if got[url] != secret {
					t.Errorf("endpoint %s: expected secret %q, got %q", url, secret, got[url])
				}
			}
		})
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "eryxon",
		Password: "pw",
		Database: "eryxon_flow",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=eryxon password=pw dbname=eryxon_flow sslmode=disable"
	if got := cfg.ConnectionString(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}
