package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for Pricehound.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"`
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Scraper   ScraperConfig   `mapstructure:"scraper"   yaml:"scraper"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Alerts    AlertsConfig    `mapstructure:"alerts"    yaml:"alerts"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// DatabaseConfig holds the SQL store connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RedisConfig holds the shared rate-gate backend settings.
type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ScraperConfig controls the worker process.
type ScraperConfig struct {
	ProxyList       []string      `mapstructure:"proxy_list"       yaml:"proxy_list"`
	UserAgents      []string      `mapstructure:"user_agents"      yaml:"user_agents"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"      yaml:"nav_timeout"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"     yaml:"max_attempts"`
	PoliteDelay     time.Duration `mapstructure:"polite_delay"     yaml:"polite_delay"`
	CycleDelay      time.Duration `mapstructure:"cycle_delay"      yaml:"cycle_delay"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"    yaml:"error_backoff"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir"   yaml:"screenshot_dir"`
	MetricsPort     int           `mapstructure:"metrics_port"     yaml:"metrics_port"`
}

// SchedulerConfig controls the scheduler process.
type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     yaml:"interval"`
	MetricsPort int           `mapstructure:"metrics_port" yaml:"metrics_port"`
}

// AlertsConfig holds outbound notification transports. Unset transports are
// skipped; the alert row is still written.
type AlertsConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url" yaml:"discord_webhook_url"`
	TelegramBotToken  string `mapstructure:"telegram_bot_token"  yaml:"telegram_bot_token"`
	TelegramChatID    string `mapstructure:"telegram_chat_id"    yaml:"telegram_chat_id"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Scraper: ScraperConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			},
			NavTimeout:      30 * time.Second,
			SelectorTimeout: 10 * time.Second,
			MaxAttempts:     3,
			PoliteDelay:     2 * time.Second,
			CycleDelay:      60 * time.Second,
			ErrorBackoff:    10 * time.Second,
			ScreenshotDir:   "screenshots",
			MetricsPort:     8001,
		},
		Scheduler: SchedulerConfig{
			Interval:    300 * time.Second,
			MetricsPort: 8002,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
