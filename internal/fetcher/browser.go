package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/pricehound/pricehound/internal/retry"
	"github.com/pricehound/pricehound/internal/types"
)

// Browser emulation constants. Each fetch randomises the viewport within
// these bounds and pins the locale to the target market.
const (
	minViewportWidth  = 1200
	maxViewportWidth  = 1920
	minViewportHeight = 800
	maxViewportHeight = 1080

	browserLocale   = "en-IN"
	browserTimezone = "Asia/Kolkata"
)

// hideWebdriverJS is installed before any page script runs so that the
// navigator no longer reports automation.
const hideWebdriverJS = `() => {
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined
	});
}`

// BrowserFetcher implements PageFetcher with a headless browser via Rod.
// Every fetch launches a fresh browser so no fingerprint state leaks between
// sites, and each retry attempt re-selects its proxy and user agent.
type BrowserFetcher struct {
	proxies         *ProxyPool
	uas             *UAPool
	policy          retry.Policy
	navTimeout      time.Duration
	selectorTimeout time.Duration
	screenshotDir   string
	logger          *slog.Logger
}

// NewBrowserFetcher creates a browser fetcher with the canonical retry policy.
func NewBrowserFetcher(proxies *ProxyPool, uas *UAPool, maxAttempts int, navTimeout, selectorTimeout time.Duration, screenshotDir string, logger *slog.Logger) *BrowserFetcher {
	logger = logger.With("component", "browser_fetcher")

	policy := retry.NewPolicy(maxAttempts, logger)
	policy.RetryIf = func(err error) bool {
		// Cancellation bypasses the policy; everything else is worth a fresh
		// proxy and user agent.
		return !errors.Is(err, context.Canceled)
	}

	if err := os.MkdirAll(screenshotDir, 0o755); err != nil {
		logger.Warn("cannot create screenshot dir", "dir", screenshotDir, "error", err)
	}

	return &BrowserFetcher{
		proxies:         proxies,
		uas:             uas,
		policy:          policy,
		navTimeout:      navTimeout,
		selectorTimeout: selectorTimeout,
		screenshotDir:   screenshotDir,
		logger:          logger,
	}
}

// Fetch implements PageFetcher. The whole fetch runs under the retry policy.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*types.FetchResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = f.navTimeout
	}

	var result *types.FetchResult
	err := f.policy.Do(ctx, func() error {
		res, err := f.fetchOnce(ctx, url, opts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fetchOnce performs a single attempt and updates proxy health.
func (f *BrowserFetcher) fetchOnce(ctx context.Context, url string, opts FetchOptions) (*types.FetchResult, error) {
	proxy := f.proxies.Select()
	ua := f.uas.Pick()
	start := time.Now()

	res, err := f.render(ctx, url, proxy, ua, opts)
	if err != nil {
		f.proxies.MarkFailure(proxy, err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &types.FetchError{URL: url, Err: err, Retryable: true}
	}

	f.proxies.MarkSuccess(proxy)
	res.Proxy = proxy
	res.UserAgent = ua
	res.ResponseTimeMS = int(time.Since(start).Milliseconds())

	f.logger.Debug("fetch complete",
		"url", url,
		"status", res.Status,
		"size", len(res.HTML),
		"response_time_ms", res.ResponseTimeMS,
	)
	return res, nil
}

// render drives one browser instance through navigation, pacing, and capture.
func (f *BrowserFetcher) render(ctx context.Context, url, proxy, ua string, opts FetchOptions) (*types.FetchResult, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if proxy != "" {
		l = l.Proxy(proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
		l.Kill()
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := f.preparePage(page, ua); err != nil {
		return nil, err
	}

	status, err := f.navigate(page, url, opts.Timeout)
	if err != nil {
		return nil, err
	}

	if sel := opts.WaitForSelector; sel != "" {
		if _, err := page.Timeout(f.selectorTimeout).Element(sel); err != nil {
			return nil, fmt.Errorf("wait for selector %q: %w", sel, types.ErrSelectorWait)
		}
	}

	// Pause a beat to look human before reading the DOM.
	if err := humanPause(ctx); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("page content: %w", err)
	}
	if html == "" {
		return nil, types.ErrEmptyHTML
	}

	res := &types.FetchResult{Status: status, HTML: html}

	if status >= 400 {
		res.ScreenshotURL = f.captureScreenshot(page)
	}

	return res, nil
}

// preparePage applies user agent, headers, viewport, locale, and the stealth
// init script to a fresh page.
func (f *BrowserFetcher) preparePage(page *rod.Page, ua string) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: browserLocale,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	headers := f.uas.Headers()
	flat := make([]string, 0, len(headers)*2)
	for k, v := range headers {
		flat = append(flat, k, v)
	}
	if _, err := page.SetExtraHeaders(flat); err != nil {
		f.logger.Warn("failed to set extra headers", "error", err)
	}

	width := minViewportWidth + rand.Intn(maxViewportWidth-minViewportWidth+1)
	height := minViewportHeight + rand.Intn(maxViewportHeight-minViewportHeight+1)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: browserTimezone}).Call(page); err != nil {
		f.logger.Warn("failed to set timezone", "error", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: browserLocale}).Call(page); err != nil {
		f.logger.Warn("failed to set locale", "error", err)
	}

	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		return fmt.Errorf("install stealth script: %w", err)
	}

	return proto.NetworkEnable{}.Call(page)
}

// docStatus tracks the main-document HTTP status during navigation. Redirect
// chains emit several document responses; the last one seen before
// DOMContentLoaded is the page that actually rendered.
type docStatus struct {
	code int
}

func (d *docStatus) observe(e *proto.NetworkResponseReceived) {
	if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return
	}
	d.code = e.Response.Status
}

// navigate loads the page up to DOMContentLoaded and reports the document's
// HTTP status.
func (f *BrowserFetcher) navigate(page *rod.Page, url string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	tpage := page.Timeout(timeout)

	var status docStatus
	wait := tpage.EachEvent(
		func(e *proto.NetworkResponseReceived) {
			status.observe(e)
		},
		func(e *proto.PageDomContentEventFired) (stop bool) {
			return true
		},
	)

	if err := tpage.Navigate(url); err != nil {
		return 0, fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if time.Now().After(deadline) {
		return 0, fmt.Errorf("navigate %s: %w", url, context.DeadlineExceeded)
	}
	return status.code, nil
}

// captureScreenshot saves an evidence PNG for error statuses; failures to
// capture are logged and ignored.
func (f *BrowserFetcher) captureScreenshot(page *rod.Page) string {
	data, err := page.Screenshot(false, nil)
	if err != nil {
		f.logger.Warn("screenshot failed", "error", err)
		return ""
	}
	path := filepath.Join(f.screenshotDir, fmt.Sprintf("error_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		f.logger.Warn("screenshot write failed", "path", path, "error", err)
		return ""
	}
	return path
}

// humanPause sleeps a random interval in [0.5s, 2.0s], honouring ctx.
func humanPause(ctx context.Context) error {
	pause := 500*time.Millisecond + time.Duration(rand.Int63n(int64(1500*time.Millisecond)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pause):
		return nil
	}
}
