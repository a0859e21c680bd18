// Package worker runs the per-target scrape pipeline: rate gating, fetching,
// parsing, persistence, and alerting.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pricehound/pricehound/internal/fetcher"
	"github.com/pricehound/pricehound/internal/observability"
	"github.com/pricehound/pricehound/internal/parser"
	"github.com/pricehound/pricehound/internal/ratelimit"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/internal/types"
)

// Cooldowns armed after each outcome. Harsher outcomes push the domain
// further away.
const (
	cooldownSuccess = 5 * time.Second
	cooldownFailure = 30 * time.Second
	cooldownCaptcha = 300 * time.Second
)

// repeatedErrorThreshold is the run of consecutive failures that raises a
// repeated_errors alert.
const repeatedErrorThreshold = 3

// Parsers is the registry lookup the worker needs.
type Parsers interface {
	Get(domain string) (parser.Parser, bool)
}

// Alerter fans out pipeline anomalies.
type Alerter interface {
	Captcha(ctx context.Context, target types.Target, screenshotURL string) error
	PriceDrop(ctx context.Context, target types.Target, oldPrice, newPrice float64) error
	RepeatedErrors(ctx context.Context, target types.Target, count int) error
}

// Options tune the worker's pacing.
type Options struct {
	PoliteDelay  time.Duration // between targets within a cycle
	CycleDelay   time.Duration // between cycles
	ErrorBackoff time.Duration // after a worker-level error
}

// Worker processes active targets sequentially, one scrape at a time.
// Horizontal scale comes from running more worker processes; the rate gate
// is the only coordination point between them.
type Worker struct {
	store   store.Store
	gate    ratelimit.Gate
	fetcher fetcher.PageFetcher
	parsers Parsers
	alerts  Alerter
	opts    Options
	logger  *slog.Logger

	// consecutive failure runs, keyed by target id
	failures map[string]int
}

// New assembles a worker from its collaborators.
func New(st store.Store, gate ratelimit.Gate, f fetcher.PageFetcher, parsers Parsers, alerts Alerter, opts Options, logger *slog.Logger) *Worker {
	if opts.PoliteDelay == 0 {
		opts.PoliteDelay = 2 * time.Second
	}
	if opts.CycleDelay == 0 {
		opts.CycleDelay = 60 * time.Second
	}
	if opts.ErrorBackoff == 0 {
		opts.ErrorBackoff = 10 * time.Second
	}
	return &Worker{
		store:    st,
		gate:     gate,
		fetcher:  f,
		parsers:  parsers,
		alerts:   alerts,
		opts:     opts,
		logger:   logger.With("component", "worker"),
		failures: make(map[string]int),
	}
}

// Run loops over active targets until the context is cancelled. Failures in
// a single target never abort the loop; failures reading the target list
// back off briefly and try again.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker starting")
	for {
		if err := w.runCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				w.logger.Info("worker stopping")
				return
			}
			w.logger.Error("cycle failed", "error", err)
			if !sleepCtx(ctx, w.opts.ErrorBackoff) {
				w.logger.Info("worker stopping")
				return
			}
			continue
		}
		if !sleepCtx(ctx, w.opts.CycleDelay) {
			w.logger.Info("worker stopping")
			return
		}
	}
}

// runCycle processes every active target once.
func (w *Worker) runCycle(ctx context.Context) error {
	targets, err := w.store.ActiveTargets(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("cycle starting", "targets", len(targets))

	for i, target := range targets {
		if err := w.ProcessTarget(ctx, target); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error("target failed", "target", target.ID, "domain", target.Domain, "error", err)
		}
		if i < len(targets)-1 {
			if !sleepCtx(ctx, w.opts.PoliteDelay) {
				return ctx.Err()
			}
		}
	}
	return nil
}

// ProcessTarget runs the full pipeline for one target: honour the rate gate,
// fetch, detect CAPTCHA, parse, compare against the latest price, persist,
// and arm the next cooldown.
func (w *Worker) ProcessTarget(ctx context.Context, target types.Target) error {
	log := w.logger.With("target", target.ID, "domain", target.Domain)

	wait, err := w.gate.Check(ctx, target.Domain)
	if err != nil {
		log.Warn("rate gate check failed, proceeding", "error", err)
	} else if wait > 0 {
		log.Debug("domain cooling down", "wait", wait)
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}

	start := time.Now()
	res, err := w.fetcher.Fetch(ctx, target.URL, fetcher.FetchOptions{})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.recordFailure(ctx, target, err.Error(), true)
		observability.ObserveScrape(target.Domain, "failure", time.Since(start))
		return err
	}

	p, ok := w.parsers.Get(target.Domain)
	if !ok {
		log.Error("no parser registered and no fallback")
		return nil
	}

	if p.DetectCaptcha(res.HTML) {
		log.Warn("captcha page detected", "status", res.Status)
		if err := w.alerts.Captcha(ctx, target, res.ScreenshotURL); err != nil {
			log.Error("captcha alert failed", "error", err)
		}
		w.updateJob(ctx, target.ID, types.JobCaptcha, "CAPTCHA encountered")
		w.setGate(ctx, target.Domain, cooldownCaptcha)
		observability.ObserveScrape(target.Domain, "captcha", time.Since(start))
		return nil
	}

	data := p.ParsePrice(res.HTML)
	if data == nil {
		log.Warn("no price found", "method", "all")
		w.recordFailure(ctx, target, "Price parsing failed", false)
		observability.ObserveScrape(target.Domain, "failure", time.Since(start))
		return nil
	}

	latest, err := w.store.LatestPrice(ctx, target.ID)
	if err != nil {
		log.Warn("latest price lookup failed", "error", err)
	} else if latest != nil && data.Price < latest.Price*0.95 {
		log.Info("price drop detected", "old", latest.Price, "new", data.Price)
		if err := w.alerts.PriceDrop(ctx, target, latest.Price, data.Price); err != nil {
			log.Error("price drop alert failed", "error", err)
		}
	}

	obs := types.PriceObservation{
		TargetID:       target.ID,
		Price:          data.Price,
		Currency:       data.Currency,
		RawHTML:        res.HTML,
		ScreenshotURL:  res.ScreenshotURL,
		ProxyUsed:      res.Proxy,
		UserAgent:      res.UserAgent,
		ResponseTimeMS: res.ResponseTimeMS,
		ContentHash:    p.ContentHash(res.HTML),
	}
	if err := w.store.SavePriceObservation(ctx, obs); err != nil {
		log.Error("observation write failed", "error", err)
		w.recordFailure(ctx, target, err.Error(), false)
		observability.ObserveScrape(target.Domain, "failure", time.Since(start))
		return err
	}

	w.updateJob(ctx, target.ID, types.JobSuccess, "")
	w.setGate(ctx, target.Domain, cooldownSuccess)
	w.failures[target.ID] = 0
	observability.ObserveScrape(target.Domain, "success", time.Since(start))
	log.Info("scrape complete", "price", data.Price, "currency", data.Currency, "method", data.Method)
	return nil
}

// recordFailure marks the job failed, arms the failure cooldown if asked,
// and tracks the consecutive-failure run for repeated_errors alerting.
func (w *Worker) recordFailure(ctx context.Context, target types.Target, msg string, armGate bool) {
	w.updateJob(ctx, target.ID, types.JobFailed, msg)
	if armGate {
		w.setGate(ctx, target.Domain, cooldownFailure)
	}

	w.failures[target.ID]++
	if w.failures[target.ID] >= repeatedErrorThreshold {
		count := w.failures[target.ID]
		if err := w.alerts.RepeatedErrors(ctx, target, count); err != nil {
			w.logger.Error("repeated errors alert failed", "target", target.ID, "error", err)
		}
		w.failures[target.ID] = 0
	}
}

// updateJob writes a job transition; failures are logged, not fatal, since
// the scheduler re-promotes the target next cycle anyway.
func (w *Worker) updateJob(ctx context.Context, jobID, status, lastError string) {
	if err := w.store.UpdateJob(ctx, jobID, status, lastError); err != nil {
		w.logger.Error("job update failed", "job", jobID, "status", status, "error", err)
	}
}

func (w *Worker) setGate(ctx context.Context, domain string, ttl time.Duration) {
	if err := w.gate.Set(ctx, domain, ttl); err != nil {
		w.logger.Warn("rate gate set failed", "domain", domain, "error", err)
	}
}

// sleepCtx sleeps for d unless the context ends first. It reports whether
// the full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
