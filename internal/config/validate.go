package config

import (
	"fmt"
	"net/url"

	"github.com/pricehound/pricehound/internal/types"
)

// Validate checks a loaded Config for fatal problems. A missing database DSN
// stops the process at startup; everything else has a workable default.
func Validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return types.ErrMissingDSN
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url must not be empty")
	}
	if _, err := url.Parse(cfg.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}
	for _, p := range cfg.Scraper.ProxyList {
		u, err := url.Parse(p)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid proxy URL %q", p)
		}
	}
	if len(cfg.Scraper.UserAgents) == 0 {
		return fmt.Errorf("scraper.user_agents must not be empty")
	}
	if cfg.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("scraper.max_attempts must be at least 1")
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	return nil
}
