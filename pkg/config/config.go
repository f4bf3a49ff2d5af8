package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the eryxon-flow engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration for the change notifier. Optional: if host is
	// empty the engine falls back to the in-process notifier.
	Redis RedisConfig `yaml:"redis"`

	// Webhook delivery configuration
	Webhook WebhookConfig `yaml:"webhook"`

	// CAD processing microservice (PMI extraction)
	CAD CADConfig `yaml:"cad"`

	// Capacity metrics tuning
	Capacity CapacityConfig `yaml:"capacity"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"eryxon"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"eryxon_flow"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis connection settings for change-event pub/sub.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// WebhookConfig holds outbound webhook delivery settings.
type WebhookConfig struct {
	// EndpointsStr is a comma-separated list of url=secret pairs.
	// Format: "https://consumer.example/hook=s3cret,https://other/hook=key2"
	// Secrets sign each delivery with HMAC-SHA256, so env-only.
	EndpointsStr string `yaml:"-" env:"WEBHOOK_ENDPOINTS"`

	// Endpoints is the parsed map from EndpointsStr (not from config file).
	Endpoints map[string]string `yaml:"-"`

	// TimeoutSeconds bounds a single delivery attempt.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"WEBHOOK_TIMEOUT_SECONDS" env-default:"10"`
}

// CADConfig holds the PMI extraction service endpoint.
type CADConfig struct {
	ServiceURL string `yaml:"service_url" env:"CAD_SERVICE_URL" env-default:""`
	APIKey     string `yaml:"-" env:"CAD_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds the process-async handoff request.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"CAD_TIMEOUT_SECONDS" env-default:"30"`
}

// IsAvailable returns true if the CAD service is configured.
func (c *CADConfig) IsAvailable() bool {
	return c.ServiceURL != ""
}

// CapacityConfig tunes the historical window for wait-time and throughput.
type CapacityConfig struct {
	// HistoryDays is the trailing window used for avg wait time and
	// throughput computations.
	HistoryDays int `yaml:"history_days" env:"CAPACITY_HISTORY_DAYS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// WEBHOOK_ENDPOINTS, CAD_API_KEY) must come from environment variables.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Webhook.Endpoints = parseWebhookEndpoints(cfg.Webhook.EndpointsStr)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseWebhookEndpoints parses the endpoints string into a url -> secret map.
// Format: "url1=secret1,url2=secret2". Pairs without a secret are skipped.
func parseWebhookEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		idx := strings.Index(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		endpoints[strings.TrimSpace(pair[:idx])] = strings.TrimSpace(pair[idx+1:])
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
