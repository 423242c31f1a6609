package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envConfigPath = "SMSBRIDGE_CONFIG"

const (
	defaultNexmoBaseURL   = "https://rest.nexmo.com"
	defaultRequestTimeout = 15
	defaultWebhookHost    = "0.0.0.0"
	defaultWebhookPort    = 8080
	defaultWebhookPath    = "/webhooks/inbound"
	defaultGatewayHost    = "0.0.0.0"
	defaultGatewayPort    = 18790
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Adapter AdapterConfig `json:"adapter"`
	Nexmo   NexmoConfig   `json:"nexmo"`
	Webhook WebhookConfig `json:"webhook"`
	Gateway GatewayConfig `json:"gateway"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" env:"SMSBRIDGE_LOG_FORMAT"`
	Level     string `json:"level,omitempty" env:"SMSBRIDGE_LOG_LEVEL"`
	AddSource bool   `json:"add_source,omitempty" env:"SMSBRIDGE_LOG_ADD_SOURCE"`
}

// AdapterConfig holds the adapter identity. An empty ID is generated at startup.
type AdapterConfig struct {
	ID string `json:"id" env:"SMSBRIDGE_ADAPTER_ID"`
}

// NexmoConfig holds carrier credentials and client settings.
type NexmoConfig struct {
	APIKey                string `json:"api_key" env:"SMSBRIDGE_NEXMO_API_KEY"`
	APISecret             string `json:"api_secret" env:"SMSBRIDGE_NEXMO_API_SECRET"`
	From                  string `json:"from" env:"SMSBRIDGE_NEXMO_FROM"`
	BaseURL               string `json:"base_url" env:"SMSBRIDGE_NEXMO_BASE_URL"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" env:"SMSBRIDGE_NEXMO_REQUEST_TIMEOUT_SECONDS"`
}

// WebhookConfig configures the inbound listener the carrier calls back.
type WebhookConfig struct {
	Enabled   bool   `json:"enabled" env:"SMSBRIDGE_WEBHOOK_ENABLED"`
	Host      string `json:"host" env:"SMSBRIDGE_WEBHOOK_HOST"`
	Port      int    `json:"port" env:"SMSBRIDGE_WEBHOOK_PORT"`
	Path      string `json:"path" env:"SMSBRIDGE_WEBHOOK_PATH"`
	QueueSize int    `json:"queue_size" env:"SMSBRIDGE_WEBHOOK_QUEUE_SIZE"`
}

// GatewayConfig configures the health and send API bind settings.
type GatewayConfig struct {
	Host string `json:"host" env:"SMSBRIDGE_GATEWAY_HOST"`
	Port int    `json:"port" env:"SMSBRIDGE_GATEWAY_PORT"`
	// AuthSecret enables HS256 bearer tokens on the /v1 API when set.
	AuthSecret string `json:"auth_secret,omitempty" env:"SMSBRIDGE_GATEWAY_AUTH_SECRET"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Nexmo: NexmoConfig{
			BaseURL:               defaultNexmoBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Webhook: WebhookConfig{
			Enabled: true,
			Host:    defaultWebhookHost,
			Port:    defaultWebhookPort,
			Path:    defaultWebhookPath,
		},
		Gateway: GatewayConfig{
			Host: defaultGatewayHost,
			Port: defaultGatewayPort,
		},
	}
}

// LoadConfig resolves config.json, unmarshals it over the defaults, and applies
// SMSBRIDGE_* environment overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	normalize(cfg)

	return cfg, nil
}

// normalize trims credentials and restores defaults zeroed by the file.
func normalize(cfg *Config) {
	cfg.Adapter.ID = strings.TrimSpace(cfg.Adapter.ID)
	cfg.Nexmo.APIKey = strings.TrimSpace(cfg.Nexmo.APIKey)
	cfg.Nexmo.APISecret = strings.TrimSpace(cfg.Nexmo.APISecret)
	cfg.Nexmo.From = strings.TrimSpace(cfg.Nexmo.From)
	cfg.Gateway.AuthSecret = strings.TrimSpace(cfg.Gateway.AuthSecret)

	if strings.TrimSpace(cfg.Nexmo.BaseURL) == "" {
		cfg.Nexmo.BaseURL = defaultNexmoBaseURL
	}
	if cfg.Nexmo.RequestTimeoutSeconds <= 0 {
		cfg.Nexmo.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if strings.TrimSpace(cfg.Webhook.Path) == "" {
		cfg.Webhook.Path = defaultWebhookPath
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		cfg.Webhook.Path = "/" + cfg.Webhook.Path
	}
}

// findConfigPath resolves the active config file location.
//
// SMSBRIDGE_CONFIG must name an existing file when set. Otherwise the cwd-local
// fallbacks are tried and an empty path means "defaults only".
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}

	return "", nil
}
