// Package config loads service settings from settings.toml, the environment and an optional .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	ModeLongPolling = "long-polling"
	ModeWebhook     = "webhook"

	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Verbose  bool           `mapstructure:"verbose"`
	Mode     string         `mapstructure:"mode"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Session  SessionConfig  `mapstructure:"session"`
	Display  DisplayConfig  `mapstructure:"display"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelegramConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Token      string  `mapstructure:"token"`
	WebhookURL string  `mapstructure:"webhook_url"`
	AdminIDs   []int64 `mapstructure:"admin_ids"`
}

type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	DatabaseURL string        `mapstructure:"database_url"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type DisplayConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// legacyEnv maps keys to the plain environment variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"telegram.token":       "TELEGRAM_BOT_TOKEN",
	"storage.database_url": "DATABASE_URL",
	"llm.openai_api_key":   "OPENAI_API_KEY",
	"llm.gemini_api_key":   "GEMINI_API_KEY",
	"telegram.webhook_url": "WEBHOOK_URL",
	"telegram.admin_ids":   "TELEGRAM_ADMIN_IDS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("mode", ModeLongPolling)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "data/pollmate.db")
	v.SetDefault("storage.timeout", "5s")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.min_delay", "200ms")
	v.SetDefault("retry.max_delay", "2s")
	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.sweep_schedule", "@every 10m")
	v.SetDefault("display.timezone", "UTC")
}

// New returns a viper instance with defaults, settings file lookup and environment binding.
// Flags may be bound to it before Load is called.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.SetConfigName("settings")
	v.SetConfigType("toml")

	v.SetEnvPrefix("POLLMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "POLLMATE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads .env (if present) and settings.toml (if present), then decodes and validates.
// An explicit file path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode settings: %w", err)
	}
	return cfg, nil
}

// ValidateServe checks what the serve command needs.
func (c Config) ValidateServe() error {
	if err := c.validateCore(); err != nil {
		return err
	}
	if !c.Telegram.Enabled {
		return nil
	}
	if c.Telegram.Token == "" {
		return errors.New("env TELEGRAM_BOT_TOKEN is required")
	}
	switch c.Mode {
	case ModeLongPolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return errors.New("webhook url is required in webhook mode")
		}
	default:
		return fmt.Errorf("unknown mode %q: use %s or %s", c.Mode, ModeLongPolling, ModeWebhook)
	}
	return nil
}

// ValidateChat checks what the local chat command needs.
func (c Config) ValidateChat() error {
	return c.validateCore()
}

func (c Config) validateCore() error {
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database url is required (env DATABASE_URL)")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return errors.New("env OPENAI_API_KEY is required")
		}
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("env GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	return nil
}

// IsAdmin reports whether a Telegram user id is listed as an administrator.
func (c TelegramConfig) IsAdmin(userID int64) bool {
	return lo.Contains(c.AdminIDs, userID)
}
