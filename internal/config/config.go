// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrOpenAIAPIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrUnsupportedDBDriver is returned for an unknown DB_DRIVER value.
	ErrUnsupportedDBDriver = errors.New("config: DB_DRIVER must be sqlite or mysql")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port    int    `env:"PORT, default=8080" json:"port"`
	BaseURL string `env:"BASE_URL, default=http://localhost:8080" json:"base_url"`

	// OpenAI settings
	OpenAIAPIKey  string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty"`
	TextModel     string `env:"TEXT_MODEL, default=gpt-5" json:"text_model"`
	VideoModel    string `env:"VIDEO_MODEL, default=sora-2" json:"video_model"`
	VideoSeconds  string `env:"VIDEO_SECONDS, default=4" json:"video_seconds"`
	VideoSize     string `env:"VIDEO_SIZE, default=720x1280" json:"video_size"`

	// Database settings
	DBDriver string `env:"DB_DRIVER, default=sqlite" json:"db_driver"` // "sqlite" or "mysql"
	DBDSN    string `env:"DB_DSN, default=adforge.db" json:"db_dsn"`

	// Storage settings
	DataDir     string `env:"DATA_DIR, default=./data" json:"data_dir"`
	PromptsDir  string `env:"PROMPTS_DIR" json:"prompts_dir,omitempty"`
	MaxUploadMB int    `env:"MAX_UPLOAD_MB, default=16" json:"max_upload_mb"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrOpenAIAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrOpenAIAPIKeyRequired
	}
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return ErrUnsupportedDBDriver
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, BaseURL: %s, TextModel: %s, VideoModel: %s, DBDriver: %s, DataDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.BaseURL,
		c.TextModel,
		c.VideoModel,
		c.DBDriver,
		c.DataDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
