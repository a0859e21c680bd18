package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pricehound/pricehound/internal/alert"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/fetcher"
	"github.com/pricehound/pricehound/internal/observability"
	"github.com/pricehound/pricehound/internal/parser"
	"github.com/pricehound/pricehound/internal/ratelimit"
	"github.com/pricehound/pricehound/internal/scheduler"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/internal/worker"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricehound",
		Short: "PriceHound — distributed price-intelligence crawler",
		Long: `PriceHound watches product pages across e-commerce sites, extracts
prices with per-domain parsers, persists a price time-series, and raises
alerts on CAPTCHA walls, repeated failures, and price drops.

Run "pricehound scheduler" to promote active targets into pending jobs and
"pricehound worker" (one or many) to scrape them. Workers coordinate through
a shared Redis rate gate; everything durable lives in PostgreSQL.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(schedulerCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// workerCmd creates the "worker" subcommand.
func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the scrape worker loop",
		Long:  "Continuously pull active targets and run the per-target scrape pipeline.",
		RunE:  runWorker,
	}
}

// schedulerCmd creates the "scheduler" subcommand.
func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the job scheduler loop",
		Long:  "Periodically promote every active target into a pending scrape job.",
		RunE:  runScheduler,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PriceHound %s\n", config.Version)
		},
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool, logger)

	rdb, err := ratelimit.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	gate := ratelimit.NewRedisGate(rdb, logger)

	proxies := fetcher.NewProxyPool(cfg.Scraper.ProxyList, logger)
	uas := fetcher.NewUAPool(cfg.Scraper.UserAgents)
	browser := fetcher.NewBrowserFetcher(proxies, uas,
		cfg.Scraper.MaxAttempts, cfg.Scraper.NavTimeout, cfg.Scraper.SelectorTimeout,
		cfg.Scraper.ScreenshotDir, logger)

	registry := parser.NewRegistry(logger)

	sink := alert.NewSink(st, cfg.Alerts, logger)
	defer sink.Close()

	observability.StartServer(cfg.Scraper.MetricsPort, logger)

	logger.Info("starting worker",
		"proxies", len(cfg.Scraper.ProxyList),
		"metrics_port", cfg.Scraper.MetricsPort,
	)

	w := worker.New(st, gate, browser, registry, sink, worker.Options{
		PoliteDelay:  cfg.Scraper.PoliteDelay,
		CycleDelay:   cfg.Scraper.CycleDelay,
		ErrorBackoff: cfg.Scraper.ErrorBackoff,
	}, logger)
	w.Run(ctx)

	logger.Info("worker shut down")
	return nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool, logger)

	observability.StartServer(cfg.Scheduler.MetricsPort, logger)

	logger.Info("starting scheduler",
		"interval", cfg.Scheduler.Interval,
		"metrics_port", cfg.Scheduler.MetricsPort,
	)

	s := scheduler.New(st, cfg.Scheduler.Interval, logger)
	s.Run(ctx)

	logger.Info("scheduler shut down")
	return nil
}

// setupLogger builds the process logger from config, with the verbose flag
// forcing debug level.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
