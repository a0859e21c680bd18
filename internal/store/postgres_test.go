package store

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pricehound/pricehound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakePool records Exec calls and serves canned QueryRow results.
type fakePool struct {
	execSQL  []string
	execArgs [][]any
	rowErr   error
	rowScan  func(dest ...any)
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakePool) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{err: f.rowErr, scan: f.rowScan}
}

func (f *fakePool) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

type fakeRow struct {
	err  error
	scan func(dest ...any)
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		r.scan(dest...)
	}
	return nil
}

func TestUpsertPendingJobSQL(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testLogger)

	if err := s.UpsertPendingJob(context.Background(), "t-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(pool.execSQL) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(pool.execSQL))
	}
	sql := pool.execSQL[0]
	for _, want := range []string{"ON CONFLICT (id)", "status = 'pending'", "attempts = scrape_jobs.attempts + 1", "last_error = NULL"} {
		if !strings.Contains(sql, want) {
			t.Errorf("upsert SQL missing %q:\n%s", want, sql)
		}
	}
	if got := pool.execArgs[0]; len(got) != 1 || got[0] != "t-1" {
		t.Errorf("unexpected args: %v", got)
	}
}

func TestSavePriceObservationTruncatesRawHTML(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testLogger)

	obs := types.PriceObservation{
		TargetID: "t-1",
		Price:    1999,
		Currency: "INR",
		RawHTML:  strings.Repeat("x", rawHTMLLimit+500),
	}
	if err := s.SavePriceObservation(context.Background(), obs); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, ok := pool.execArgs[0][3].(string)
	if !ok {
		t.Fatalf("raw_html arg is %T", pool.execArgs[0][3])
	}
	if len(raw) != rawHTMLLimit {
		t.Errorf("expected raw_html truncated to %d, got %d", rawHTMLLimit, len(raw))
	}
}

func TestSavePriceObservationKeepsValidUTF8(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testLogger)

	obs := types.PriceObservation{
		TargetID: "t-1",
		Price:    1999,
		Currency: "INR",
		RawHTML:  strings.Repeat("₹", 2*rawHTMLLimit/3),
	}
	if err := s.SavePriceObservation(context.Background(), obs); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw := pool.execArgs[0][3].(string)
	if len(raw) > rawHTMLLimit {
		t.Errorf("raw_html over limit: %d", len(raw))
	}
	if !utf8.ValidString(raw) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestUpdateJobClearsEmptyError(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testLogger)

	if err := s.UpdateJob(context.Background(), "t-1", types.JobSuccess, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(pool.execSQL[0], "NULLIF($3, '')") {
		t.Errorf("update SQL should NULL empty errors:\n%s", pool.execSQL[0])
	}
}

func TestLatestPriceNoRows(t *testing.T) {
	pool := &fakePool{rowErr: pgx.ErrNoRows}
	s := NewPostgresStore(pool, testLogger)

	lp, err := s.LatestPrice(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if lp != nil {
		t.Errorf("expected nil for unobserved target, got %+v", lp)
	}
}

func TestLatestPriceFound(t *testing.T) {
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pool := &fakePool{rowScan: func(dest ...any) {
		*(dest[0].(*float64)) = 2499
		*(dest[1].(*time.Time)) = when
	}}
	s := NewPostgresStore(pool, testLogger)

	lp, err := s.LatestPrice(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if lp == nil || lp.Price != 2499 || !lp.ScrapedAt.Equal(when) {
		t.Errorf("unexpected latest price: %+v", lp)
	}
}

func TestCreateAlertEncodesPayload(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testLogger)

	payload := map[string]any{"old_price": 100.0, "new_price": 90.0, "drop_pct": 10.0}
	if err := s.CreateAlert(context.Background(), "p-1", types.AlertPriceDrop, payload); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	body, ok := pool.execArgs[0][2].([]byte)
	if !ok {
		t.Fatalf("payload arg is %T", pool.execArgs[0][2])
	}
	if !strings.Contains(string(body), `"drop_pct":10`) {
		t.Errorf("payload not encoded: %s", body)
	}
}
