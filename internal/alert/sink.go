// Package alert turns pipeline anomalies into durable alert rows and
// fire-and-forget webhook notifications.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/internal/types"
)

// Discord embed colours per alert kind.
const (
	colorCaptcha        = 0xE67E22 // orange
	colorPriceDrop      = 0x2ECC71 // green
	colorRepeatedErrors = 0xE74C3C // red
)

const (
	queueSize       = 64
	dispatchTimeout = 10 * time.Second

	telegramAPIBase = "https://api.telegram.org"
)

// Sink records alerts and fans them out to the configured transports. The
// alert row is the durable record; outbound sends are queued to a bounded
// channel and never block or fail the caller.
type Sink struct {
	store  store.Store
	cfg    config.AlertsConfig
	client *http.Client
	logger *slog.Logger

	// telegramBase is swapped out in tests.
	telegramBase string

	queue chan notification
	wg    sync.WaitGroup
	once  sync.Once
}

// notification is one rendered alert ready for outbound dispatch.
type notification struct {
	alertType string
	title     string
	body      string
	color     int
}

// NewSink starts the dispatch worker. Call Close to drain it on shutdown.
func NewSink(st store.Store, cfg config.AlertsConfig, logger *slog.Logger) *Sink {
	s := &Sink{
		store:  st,
		cfg:    cfg,
		client: &http.Client{Timeout: dispatchTimeout},
		logger: logger.With("component", "alert_sink"),

		telegramBase: telegramAPIBase,
		queue:        make(chan notification, queueSize),
	}
	s.wg.Add(1)
	go s.dispatchLoop()
	return s
}

// Close stops accepting notifications and waits for queued sends to finish.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.queue) })
	s.wg.Wait()
}

// Captcha records a CAPTCHA encounter for a target. screenshotURL may be
// empty when no evidence capture happened.
func (s *Sink) Captcha(ctx context.Context, target types.Target, screenshotURL string) error {
	payload := map[string]any{
		"target_id": target.ID,
		"domain":    target.Domain,
		"url":       target.URL,
	}
	if screenshotURL != "" {
		payload["screenshot_url"] = screenshotURL
	}
	if err := s.store.CreateAlert(ctx, target.ProductID, types.AlertCaptcha, payload); err != nil {
		return err
	}
	s.enqueue(notification{
		alertType: types.AlertCaptcha,
		title:     "CAPTCHA encountered",
		body:      fmt.Sprintf("%s on %s blocked by a CAPTCHA page.\n%s", target.Title, target.Domain, target.URL),
		color:     colorCaptcha,
	})
	return nil
}

// PriceDrop records a price drop from old to new.
func (s *Sink) PriceDrop(ctx context.Context, target types.Target, oldPrice, newPrice float64) error {
	dropPct := (oldPrice - newPrice) / oldPrice * 100
	payload := map[string]any{
		"target_id": target.ID,
		"domain":    target.Domain,
		"url":       target.URL,
		"old_price": oldPrice,
		"new_price": newPrice,
		"drop_pct":  dropPct,
	}
	if err := s.store.CreateAlert(ctx, target.ProductID, types.AlertPriceDrop, payload); err != nil {
		return err
	}
	s.enqueue(notification{
		alertType: types.AlertPriceDrop,
		title:     "Price drop",
		body: fmt.Sprintf("%s on %s dropped %.1f%%: %.2f -> %.2f\n%s",
			target.Title, target.Domain, dropPct, oldPrice, newPrice, target.URL),
		color: colorPriceDrop,
	})
	return nil
}

// RepeatedErrors records a run of consecutive failures for a target.
func (s *Sink) RepeatedErrors(ctx context.Context, target types.Target, count int) error {
	payload := map[string]any{
		"target_id": target.ID,
		"domain":    target.Domain,
		"url":       target.URL,
		"count":     count,
	}
	if err := s.store.CreateAlert(ctx, target.ProductID, types.AlertRepeatedErrors, payload); err != nil {
		return err
	}
	s.enqueue(notification{
		alertType: types.AlertRepeatedErrors,
		title:     "Repeated scrape failures",
		body:      fmt.Sprintf("%s on %s failed %d times in a row.\n%s", target.Title, target.Domain, count, target.URL),
		color:     colorRepeatedErrors,
	})
	return nil
}

// enqueue hands a notification to the dispatch worker, dropping it when the
// queue is full so the pipeline never stalls on outbound sends.
func (s *Sink) enqueue(n notification) {
	select {
	case s.queue <- n:
	default:
		s.logger.Warn("notification queue full, dropping", "alert_type", n.alertType)
	}
}

func (s *Sink) dispatchLoop() {
	defer s.wg.Done()
	for n := range s.queue {
		s.dispatch(n)
	}
}

// dispatch sends one notification to every configured transport. Failures
// are logged and swallowed.
func (s *Sink) dispatch(n notification) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if s.cfg.DiscordWebhookURL != "" {
		if err := s.sendDiscord(ctx, n); err != nil {
			s.logger.Warn("discord send failed", "alert_type", n.alertType, "error", err)
		}
	}
	if s.cfg.TelegramBotToken != "" && s.cfg.TelegramChatID != "" {
		if err := s.sendTelegram(ctx, n); err != nil {
			s.logger.Warn("telegram send failed", "alert_type", n.alertType, "error", err)
		}
	}
}

// sendDiscord posts an embed to the configured webhook.
func (s *Sink) sendDiscord(ctx context.Context, n notification) error {
	body := map[string]any{
		"embeds": []map[string]any{{
			"title":       n.title,
			"description": n.body,
			"color":       n.color,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	return s.post(ctx, s.cfg.DiscordWebhookURL, body)
}

// sendTelegram posts a Markdown message via the bot API.
func (s *Sink) sendTelegram(ctx context.Context, n notification) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.telegramBase, s.cfg.TelegramBotToken)
	body := map[string]any{
		"chat_id":    s.cfg.TelegramChatID,
		"text":       fmt.Sprintf("*%s*\n%s", n.title, n.body),
		"parse_mode": "Markdown",
	}
	return s.post(ctx, url, body)
}

func (s *Sink) post(ctx context.Context, url string, body map[string]any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("op=alert.encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("op=alert.request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("op=alert.send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("op=alert.send: webhook returned %d", resp.StatusCode)
	}
	return nil
}
