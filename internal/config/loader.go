package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// Environment variable support. The flat names (DATABASE_URL etc.) are the
	// operational contract; the prefixed form covers everything else.
	v.SetEnvPrefix("PRICEHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindOperationalEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pricehound")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pricehound"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// PROXY_LIST arrives as a single comma-separated string from the env.
	cfg.Scraper.ProxyList = splitProxyList(v.GetString("scraper.proxy_list"), cfg.Scraper.ProxyList)

	// SCHEDULER_INTERVAL_SECONDS is a bare second count, not a duration string.
	if secs := v.GetInt("scheduler.interval_seconds"); secs > 0 {
		cfg.Scheduler.Interval = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// bindOperationalEnv maps the un-prefixed environment variables recognised by
// the deployment to their config keys.
func bindOperationalEnv(v *viper.Viper) {
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("scraper.proxy_list", "PROXY_LIST")
	_ = v.BindEnv("scraper.metrics_port", "SCRAPER_METRICS_PORT")
	_ = v.BindEnv("scheduler.interval_seconds", "SCHEDULER_INTERVAL_SECONDS")
	_ = v.BindEnv("scheduler.metrics_port", "SCHEDULER_METRICS_PORT")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("alerts.discord_webhook_url", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("alerts.telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("alerts.telegram_chat_id", "TELEGRAM_CHAT_ID")
}

// splitProxyList turns a comma-separated PROXY_LIST value into a slice,
// dropping empty entries. An empty value means direct connections.
func splitProxyList(raw string, fallback []string) []string {
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	proxies := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("redis.url", cfg.Redis.URL)

	v.SetDefault("scraper.user_agents", cfg.Scraper.UserAgents)
	v.SetDefault("scraper.nav_timeout", cfg.Scraper.NavTimeout)
	v.SetDefault("scraper.selector_timeout", cfg.Scraper.SelectorTimeout)
	v.SetDefault("scraper.max_attempts", cfg.Scraper.MaxAttempts)
	v.SetDefault("scraper.polite_delay", cfg.Scraper.PoliteDelay)
	v.SetDefault("scraper.cycle_delay", cfg.Scraper.CycleDelay)
	v.SetDefault("scraper.error_backoff", cfg.Scraper.ErrorBackoff)
	v.SetDefault("scraper.screenshot_dir", cfg.Scraper.ScreenshotDir)
	v.SetDefault("scraper.metrics_port", cfg.Scraper.MetricsPort)

	v.SetDefault("scheduler.interval", cfg.Scheduler.Interval)
	v.SetDefault("scheduler.metrics_port", cfg.Scheduler.MetricsPort)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
