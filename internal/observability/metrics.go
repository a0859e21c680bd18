// Package observability exposes Prometheus metrics for the scheduler and
// worker processes.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SchedulerCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Total number of completed scheduler cycles",
		},
	)
	SchedulerLastTargets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_targets_count",
			Help: "Number of active targets seen in the last scheduler cycle",
		},
	)

	ScrapeSuccess = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_success_total",
			Help: "Total number of successful scrapes",
		},
		[]string{"domain"},
	)
	ScrapeFailure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_failure_total",
			Help: "Total number of failed scrapes",
		},
		[]string{"domain"},
	)
	ScrapeCaptcha = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_captcha_total",
			Help: "Total number of scrapes blocked by a CAPTCHA page",
		},
		[]string{"domain"},
	)
	ScrapeDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_last_duration_seconds",
			Help: "Duration of the most recent scrape per domain",
		},
		[]string{"domain"},
	)
)

func init() {
	prometheus.MustRegister(SchedulerCycles)
	prometheus.MustRegister(SchedulerLastTargets)
	prometheus.MustRegister(ScrapeSuccess)
	prometheus.MustRegister(ScrapeFailure)
	prometheus.MustRegister(ScrapeCaptcha)
	prometheus.MustRegister(ScrapeDuration)
}

// ObserveScrape records the outcome counters and duration gauge for one
// scrape of a domain.
func ObserveScrape(domain, outcome string, elapsed time.Duration) {
	switch outcome {
	case "success":
		ScrapeSuccess.WithLabelValues(domain).Inc()
	case "captcha":
		ScrapeCaptcha.WithLabelValues(domain).Inc()
	default:
		ScrapeFailure.WithLabelValues(domain).Inc()
	}
	ScrapeDuration.WithLabelValues(domain).Set(elapsed.Seconds())
}

// StartServer serves /metrics and /health on the given port in the
// background.
func StartServer(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	log := logger.With("component", "metrics")
	log.Info("metrics server starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()
}
