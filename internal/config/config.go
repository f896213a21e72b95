package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig contains release feed settings
type FeedConfig struct {
	URL string `mapstructure:"url"`
}

// TelegramConfig contains notification channel settings
type TelegramConfig struct {
	ChatID string `mapstructure:"chat_id"`
	Token  string `mapstructure:"token"`
}

// StorageConfig contains artifact storage settings
type StorageConfig struct {
	SaveDir string `mapstructure:"save_dir"`
}

// HTTPConfig contains static file server configuration
type HTTPConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	AssetsPath   string `mapstructure:"assets_path"`
	PublicDomain string `mapstructure:"public_domain"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// SyncConfig contains release sync settings
type SyncConfig struct {
	// Cron is a 6-field cron expression with a leading seconds field.
	Cron string `mapstructure:"cron"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	v.SetDefault("storage.save_dir", "assets")
	v.SetDefault("http.listen_addr", "0.0.0.0:8080")
	v.SetDefault("http.assets_path", "/assets")
	v.SetDefault("http.public_domain", "http://localhost:8080")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("sync.cron", "*/20 * * * * *")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	if c.Storage.SaveDir == "" {
		return fmt.Errorf("storage.save_dir must not be empty")
	}
	if !strings.HasPrefix(c.HTTP.AssetsPath, "/") {
		return fmt.Errorf("http.assets_path must start with /")
	}

	if _, err := time.ParseDuration(c.HTTP.ReadTimeout); err != nil {
		return fmt.Errorf("invalid http.read_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.HTTP.IdleTimeout); err != nil {
		return fmt.Errorf("invalid http.idle_timeout: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// PublicPrefix returns the URL prefix under which saved artifacts are
// reachable, e.g. "http://localhost:8080/assets".
func (c *Config) PublicPrefix() string {
	return strings.TrimSuffix(c.HTTP.PublicDomain, "/") + c.HTTP.AssetsPath
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}
