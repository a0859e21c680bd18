package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingStore captures CreateAlert calls; the other Store methods are
// unused by the sink.
type recordingStore struct {
	mu       sync.Mutex
	alerts   []recordedAlert
	failWith error
}

type recordedAlert struct {
	productID string
	alertType string
	payload   map[string]any
}

func (r *recordingStore) CreateAlert(_ context.Context, productID, alertType string, payload map[string]any) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, recordedAlert{productID, alertType, payload})
	return nil
}

func (r *recordingStore) ActiveTargets(context.Context) ([]types.Target, error) { return nil, nil }
func (r *recordingStore) UpsertPendingJob(context.Context, string) error        { return nil }
func (r *recordingStore) UpdateJob(context.Context, string, string, string) error {
	return nil
}
func (r *recordingStore) SavePriceObservation(context.Context, types.PriceObservation) error {
	return nil
}
func (r *recordingStore) LatestPrice(context.Context, string) (*types.LatestPrice, error) {
	return nil, nil
}

var testTarget = types.Target{
	ID:        "t-1",
	ProductID: "p-1",
	Domain:    "amazon.in",
	URL:       "https://amazon.in/dp/X",
	Title:     "Widget",
}

func TestPriceDropPayload(t *testing.T) {
	st := &recordingStore{}
	sink := NewSink(st, config.AlertsConfig{}, testLogger)
	defer sink.Close()

	if err := sink.PriceDrop(context.Background(), testTarget, 100, 90); err != nil {
		t.Fatalf("price drop: %v", err)
	}

	if len(st.alerts) != 1 {
		t.Fatalf("expected 1 alert row, got %d", len(st.alerts))
	}
	a := st.alerts[0]
	if a.productID != "p-1" || a.alertType != types.AlertPriceDrop {
		t.Errorf("unexpected alert: %+v", a)
	}
	if got := a.payload["drop_pct"].(float64); got != 10 {
		t.Errorf("expected drop_pct 10, got %v", got)
	}
	if a.payload["old_price"].(float64) != 100 || a.payload["new_price"].(float64) != 90 {
		t.Errorf("unexpected prices in payload: %+v", a.payload)
	}
}

func TestCaptchaWritesRow(t *testing.T) {
	st := &recordingStore{}
	sink := NewSink(st, config.AlertsConfig{}, testLogger)
	defer sink.Close()

	if err := sink.Captcha(context.Background(), testTarget, ""); err != nil {
		t.Fatalf("captcha: %v", err)
	}
	if len(st.alerts) != 1 || st.alerts[0].alertType != types.AlertCaptcha {
		t.Fatalf("expected captcha alert row, got %+v", st.alerts)
	}
}

func TestDiscordDispatch(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st := &recordingStore{}
	sink := NewSink(st, config.AlertsConfig{DiscordWebhookURL: srv.URL}, testLogger)

	if err := sink.RepeatedErrors(context.Background(), testTarget, 3); err != nil {
		t.Fatalf("repeated errors: %v", err)
	}
	sink.Close()

	select {
	case body := <-received:
		embeds, ok := body["embeds"].([]any)
		if !ok || len(embeds) != 1 {
			t.Fatalf("expected one embed, got %v", body)
		}
		embed := embeds[0].(map[string]any)
		if embed["title"] != "Repeated scrape failures" {
			t.Errorf("unexpected title %v", embed["title"])
		}
		if int(embed["color"].(float64)) != colorRepeatedErrors {
			t.Errorf("unexpected color %v", embed["color"])
		}
	default:
		t.Fatal("discord webhook never called")
	}
}

func TestTelegramDispatch(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottok-123/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &recordingStore{}
	sink := NewSink(st, config.AlertsConfig{
		TelegramBotToken: "tok-123",
		TelegramChatID:   "chat-9",
	}, testLogger)
	sink.telegramBase = srv.URL

	if err := sink.PriceDrop(context.Background(), testTarget, 2499, 1999); err != nil {
		t.Fatalf("price drop: %v", err)
	}
	sink.Close()

	select {
	case body := <-received:
		if body["chat_id"] != "chat-9" {
			t.Errorf("unexpected chat_id %v", body["chat_id"])
		}
		if body["parse_mode"] != "Markdown" {
			t.Errorf("unexpected parse_mode %v", body["parse_mode"])
		}
		text := body["text"].(string)
		if !strings.Contains(text, "Price drop") || !strings.Contains(text, "Widget") {
			t.Errorf("unexpected text %q", text)
		}
	default:
		t.Fatal("telegram API never called")
	}
}

func TestTransportFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := &recordingStore{}
	sink := NewSink(st, config.AlertsConfig{DiscordWebhookURL: srv.URL}, testLogger)

	if err := sink.Captcha(context.Background(), testTarget, ""); err != nil {
		t.Fatalf("captcha should not surface transport errors: %v", err)
	}
	sink.Close()

	if len(st.alerts) != 1 {
		t.Fatalf("alert row must persist despite transport failure, got %d", len(st.alerts))
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	st := &recordingStore{failWith: context.DeadlineExceeded}
	sink := NewSink(st, config.AlertsConfig{}, testLogger)
	defer sink.Close()

	if err := sink.Captcha(context.Background(), testTarget, ""); err == nil {
		t.Fatal("expected store failure to surface")
	}
}
