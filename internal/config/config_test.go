package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so tests control the environment.
func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"PORT", "BASE_URL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "TEXT_MODEL", "VIDEO_MODEL",
		"VIDEO_SECONDS", "VIDEO_SIZE",
		"DB_DRIVER", "DB_DSN",
		"DATA_DIR", "PROMPTS_DIR", "MAX_UPLOAD_MB",
		"S3_BUCKET", "S3_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"LOG_FORMAT", "LOG_LEVEL",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "gpt-5", cfg.TextModel)
	assert.Equal(t, "sora-2", cfg.VideoModel)
	assert.Equal(t, "4", cfg.VideoSeconds)
	assert.Equal(t, "720x1280", cfg.VideoSize)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "adforge.db", cfg.DBDSN)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 16, cfg.MaxUploadMB)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	assert.ErrorIs(t, err, ErrOpenAIAPIKeyRequired)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("TEXT_MODEL", "gpt-5-mini")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_DSN", "user:pass@tcp(localhost:3306)/adforge")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "gpt-5-mini", cfg.TextModel)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/adforge", cfg.DBDSN)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_UnsupportedDBDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_DRIVER", "postgres")

	_, err := Load()
	assert.ErrorIs(t, err, ErrUnsupportedDBDriver)
}

func TestS3Enabled(t *testing.T) {
	cfg := &Config{S3Bucket: "adforge-artifacts", S3Region: "eu-west-1"}
	assert.True(t, cfg.S3Enabled())

	cfg.S3Region = ""
	assert.False(t, cfg.S3Enabled())
}

func TestNewLogger(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		cfg := &Config{LogFormat: "text", LogLevel: "debug"}
		assert.NotNil(t, cfg.NewLogger())
	})

	t.Run("json format", func(t *testing.T) {
		cfg := &Config{LogFormat: "json", LogLevel: "info"}
		assert.NotNil(t, cfg.NewLogger())
	})
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Port:         8080,
		OpenAIAPIKey: "sk-secret",
		TextModel:    "gpt-5",
	}
	s := cfg.String()
	assert.NotContains(t, s, "sk-secret")
	assert.Contains(t, s, "gpt-5")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}
