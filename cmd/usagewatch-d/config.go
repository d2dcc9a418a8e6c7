package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAddr = "127.0.0.1:8090"

	providerClaude = "claude"
	providerMock   = "mock"

	storageSQLite = "sqlite"
	storageMemory = "memory"
	storageRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ProviderConfig struct {
	Type       string        `mapstructure:"type"`
	BaseURL    string        `mapstructure:"base_url"`
	SessionKey string        `mapstructure:"session_key"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Local  LocalStorageConfig  `mapstructure:"local"`
	Synced SyncedStorageConfig `mapstructure:"synced"`
}

type LocalStorageConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// SyncedStorageConfig selects where the settings record lives. A sqlite
// scope with an empty path shares the local database.
type SyncedStorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	Log      bool          `mapstructure:"log"`
	History  int           `mapstructure:"history"`
	Timezone string        `mapstructure:"timezone"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	URL        string        `mapstructure:"url"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	// Deadline caps one delivery including retries. Deliveries run in the
	// background.
	Deadline time.Duration `mapstructure:"deadline"`
}

// ScheduleConfig sets the length of one settings interval unit. Intervals
// in the settings record are minutes; tests and demos shorten the unit.
type ScheduleConfig struct {
	Unit time.Duration `mapstructure:"unit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Location resolves the notification timezone.
func (c NotifyConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LoadConfig reads configPath (optional), then USAGEWATCH_* environment
// variables, over the defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("USAGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultAddr)

	v.SetDefault("provider.type", providerClaude)
	v.SetDefault("provider.base_url", "https://claude.ai/api")
	v.SetDefault("provider.session_key", "")
	v.SetDefault("provider.user_agent", "usagewatch/1.0")
	v.SetDefault("provider.timeout", "10s")

	v.SetDefault("storage.local.type", storageSQLite)
	v.SetDefault("storage.local.path", "usagewatch.db")
	v.SetDefault("storage.synced.type", storageSQLite)
	v.SetDefault("storage.synced.path", "")
	v.SetDefault("storage.synced.redis.addr", "")
	v.SetDefault("storage.synced.redis.password", "")
	v.SetDefault("storage.synced.redis.db", 0)
	v.SetDefault("storage.synced.redis.prefix", "usagewatch:")

	v.SetDefault("notify.log", true)
	v.SetDefault("notify.history", 50)
	v.SetDefault("notify.timezone", "Local")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.webhook.timeout", "5s")
	v.SetDefault("notify.webhook.max_retries", 3)
	v.SetDefault("notify.webhook.deadline", "15s")

	v.SetDefault("schedule.unit", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validate(cfg *Config) error {
	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)
	if cfg.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}

	switch cfg.Provider.Type {
	case providerClaude:
		if cfg.Provider.SessionKey == "" {
			return errors.New("provider.session_key is required for the claude provider")
		}
	case providerMock:
	default:
		return fmt.Errorf("unsupported provider.type: %q", cfg.Provider.Type)
	}
	if cfg.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %s", cfg.Provider.Timeout)
	}

	switch cfg.Storage.Local.Type {
	case storageSQLite:
		if cfg.Storage.Local.Path == "" {
			return errors.New("storage.local.path is required for sqlite")
		}
	case storageMemory:
	default:
		return fmt.Errorf("unsupported storage.local.type: %q", cfg.Storage.Local.Type)
	}

	switch cfg.Storage.Synced.Type {
	case storageSQLite, storageMemory:
	case storageRedis:
		if cfg.Storage.Synced.Redis.Addr == "" {
			return errors.New("storage.synced.redis.addr is required for redis")
		}
	default:
		return fmt.Errorf("unsupported storage.synced.type: %q", cfg.Storage.Synced.Type)
	}
	if cfg.Storage.Synced.Type == storageSQLite && cfg.Storage.Synced.Path == "" && cfg.Storage.Local.Type != storageSQLite {
		return errors.New("storage.synced.path is required when the local scope is not sqlite")
	}

	if cfg.Notify.Webhook.URL != "" {
		if cfg.Notify.Webhook.Timeout <= 0 {
			return fmt.Errorf("notify.webhook.timeout must be positive, got %s", cfg.Notify.Webhook.Timeout)
		}
		if cfg.Notify.Webhook.MaxRetries <= 0 {
			return fmt.Errorf("notify.webhook.max_retries must be positive, got %d", cfg.Notify.Webhook.MaxRetries)
		}
		if cfg.Notify.Webhook.Deadline <= 0 {
			return fmt.Errorf("notify.webhook.deadline must be positive, got %s", cfg.Notify.Webhook.Deadline)
		}
	}
	if cfg.Notify.History <= 0 {
		return fmt.Errorf("notify.history must be positive, got %d", cfg.Notify.History)
	}
	if _, err := cfg.Notify.Location(); err != nil {
		return fmt.Errorf("invalid notify.timezone: %w", err)
	}

	if cfg.Schedule.Unit <= 0 {
		return fmt.Errorf("schedule.unit must be positive, got %s", cfg.Schedule.Unit)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging.level: %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported logging.format: %q", cfg.Logging.Format)
	}
	return nil
}
