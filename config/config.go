// Package config provides configuration management for the gateway.
// Resolution order: built-in defaults, then an optional YAML file, then
// environment variables. The result is an immutable struct constructed once
// at process start and passed into each component's constructor.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBodySizeLimit caps inbound request bodies (uploads included).
const DefaultBodySizeLimit int64 = 25 * 1024 * 1024

// Config holds the application configuration.
type Config struct {
	Server          ServerConfig   `yaml:"server"`
	Gemini          GeminiConfig   `yaml:"gemini"`
	LMStudio        LMStudioConfig `yaml:"lmstudio"`
	DefaultProvider string         `yaml:"default_provider"`
	Metrics         MetricsConfig  `yaml:"metrics"`
	Logging         LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string `yaml:"port"`
	BodySizeLimit int64  `yaml:"body_size_limit"`
}

// GeminiConfig holds the cloud provider configuration.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LMStudioConfig holds the local OpenAI-compatible provider configuration.
type LMStudioConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Format string `yaml:"format"` // "text" (tint) or "json"
	Level  string `yaml:"level"`
}

// Load reads configuration from an optional .env file, an optional YAML
// file, and the environment. path may be empty; MODELRELAY_CONFIG overrides
// it, and a missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck

	cfg := &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}

	if env := os.Getenv("MODELRELAY_CONFIG"); env != "" {
		path = env
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Env values always
// win over YAML values.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setInt64(&cfg.Server.BodySizeLimit, "BODY_SIZE_LIMIT")

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")

	setString(&cfg.LMStudio.BaseURL, "LMSTUDIO_BASE_URL")
	setString(&cfg.LMStudio.APIKey, "LMSTUDIO_API_KEY")
	setString(&cfg.LMStudio.Model, "LMSTUDIO_MODEL")

	setString(&cfg.DefaultProvider, "DEFAULT_PROVIDER")

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")

	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			*dst = n
		}
	}
}
