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

const (
	// MinMonitorInterval is the floor for any monitor polling interval.
	MinMonitorInterval = 15 * time.Second
	// MaxDefaultMonitorInterval caps the interval taken from the environment.
	MaxDefaultMonitorInterval = 60 * time.Second
)

// Config holds all application configuration loaded from environment variables.
// It is built once in main and passed explicitly to constructors.
type Config struct {
	// HTTP
	Addr        string `env:"ADDR" envDefault:":3000"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | text

	// Market data
	OKXBaseURL    string  `env:"OKX_BASE_URL" envDefault:"https://www.okx.com"`
	OKXRatePerSec float64 `env:"OKX_RATE_PER_SEC" envDefault:"10"`

	// Crypto monitor
	MonitorIntervalMs int    `env:"CRYPTO_MONITOR_INTERVAL_MS" envDefault:"60000"`
	MonitorBar        string `env:"CRYPTO_MONITOR_BAR" envDefault:"30m"`
	MonitorLookback   int    `env:"CRYPTO_MONITOR_LOOKBACK" envDefault:"120"`
	MonitorIntrabar   bool   `env:"CRYPTO_MONITOR_INTRABAR" envDefault:"true"`

	// Notification
	TelegramAPIBase  string `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	WebhookURL       string `env:"WEBHOOK_URL"`

	// AI text generation
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	GeminiModel       string `env:"GEMINI_MODEL" envDefault:"google/gemini-2.0-flash-001"`
	GeminiBaseURL     string `env:"GEMINI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterReferer string `env:"OPENROUTER_REFERER"`
	OpenRouterTitle   string `env:"OPENROUTER_TITLE"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAIModel       string `env:"OPENAI_MODEL" envDefault:"gpt-4.1-mini"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`

	// Infrastructure (empty = disabled)
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/aistock.db"`

	// Reports
	ReportsBackend string `env:"REPORTS_BACKEND" envDefault:"sqlite"` // sqlite | file
	ReportsFile    string `env:"REPORTS_FILE" envDefault:"db/reports.json"`
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.OKXBaseURL = strings.TrimRight(cfg.OKXBaseURL, "/")
	cfg.TelegramAPIBase = strings.TrimRight(cfg.TelegramAPIBase, "/")
	cfg.GeminiBaseURL = strings.TrimRight(cfg.GeminiBaseURL, "/")
	cfg.OpenAIBaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	return cfg, nil
}

// MonitorInterval returns the polling interval clamped into
// [MinMonitorInterval, MaxDefaultMonitorInterval].
func (c *Config) MonitorInterval() time.Duration {
	d := time.Duration(c.MonitorIntervalMs) * time.Millisecond
	if d <= 0 {
		d = MaxDefaultMonitorInterval
	}
	if d > MaxDefaultMonitorInterval {
		d = MaxDefaultMonitorInterval
	}
	if d < MinMonitorInterval {
		d = MinMonitorInterval
	}
	return d
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
