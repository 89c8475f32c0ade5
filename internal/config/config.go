package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY,required,notEmpty"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// DirectoryBackend is "stream" or "memory". The memory directory keeps
	// users and channels in process and is meant for local runs.
	DirectoryBackend string `env:"DIRECTORY_BACKEND" envDefault:"stream"`
	StreamAPIKey     string `env:"STREAM_API_KEY"`
	StreamAPISecret  string `env:"STREAM_API_SECRET"`

	// DatabaseURL is a SQLite file path, or a postgres:// URL.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"chat_relay.db"`
	HTTPPort    string `env:"PORT" envDefault:"5000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// Cron expression for the directory reconciliation job. Empty disables it.
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DirectoryBackend {
	case "stream":
		if c.StreamAPIKey == "" || c.StreamAPISecret == "" {
			return fmt.Errorf("STREAM_API_KEY and STREAM_API_SECRET are required for the stream directory")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
