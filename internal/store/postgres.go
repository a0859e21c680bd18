package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricehound/pricehound/internal/types"
)

// rawHTMLLimit bounds how much page source one observation row carries.
const rawHTMLLimit = 5000

// PgxPool is the subset of pgxpool.Pool the store uses, kept narrow so tests
// can substitute a fake.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   PgxPool
	logger *slog.Logger
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool PgxPool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "store"),
	}
}

// NewPool creates a pgx connection pool from the provided DSN.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("op=store.parse_dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=store.connect: %w", err)
	}
	return pool, nil
}

// ActiveTargets returns active targets joined with their product rows.
func (s *PostgresStore) ActiveTargets(ctx context.Context) ([]types.Target, error) {
	q := `SELECT t.id, t.product_id, t.domain, t.url, t.active,
	             p.sku, p.title, p.brand
	      FROM targets t
	      JOIN products p ON p.id = t.product_id
	      WHERE t.active = TRUE
	      ORDER BY t.id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=targets.active: %w", err)
	}
	defer rows.Close()

	var targets []types.Target
	for rows.Next() {
		var t types.Target
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Domain, &t.URL, &t.Active,
			&t.SKU, &t.Title, &t.Brand); err != nil {
			return nil, fmt.Errorf("op=targets.scan: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=targets.active: %w", err)
	}
	return targets, nil
}

// UpsertPendingJob creates or resets the job row for a target. The job id is
// the target id, so each target holds at most one job row.
func (s *PostgresStore) UpsertPendingJob(ctx context.Context, targetID string) error {
	q := `INSERT INTO scrape_jobs (id, target_id, status, attempts, created_at, updated_at)
	      VALUES ($1, $1, 'pending', 0, NOW(), NOW())
	      ON CONFLICT (id) DO UPDATE SET
	        status = 'pending',
	        last_error = NULL,
	        updated_at = NOW(),
	        attempts = scrape_jobs.attempts + 1`
	if _, err := s.pool.Exec(ctx, q, targetID); err != nil {
		return fmt.Errorf("op=jobs.upsert_pending target=%s: %w", targetID, err)
	}
	return nil
}

// UpdateJob transitions a job row. An empty lastError stores NULL.
func (s *PostgresStore) UpdateJob(ctx context.Context, jobID, status, lastError string) error {
	q := `UPDATE scrape_jobs
	      SET status = $2, last_error = NULLIF($3, ''), updated_at = NOW()
	      WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, jobID, status, lastError); err != nil {
		return fmt.Errorf("op=jobs.update job=%s status=%s: %w", jobID, status, err)
	}
	return nil
}

// SavePriceObservation appends to price_history with scraped_at = now. The
// raw HTML is truncated before it reaches the row.
func (s *PostgresStore) SavePriceObservation(ctx context.Context, obs types.PriceObservation) error {
	raw := obs.RawHTML
	if len(raw) > rawHTMLLimit {
		cut := rawHTMLLimit
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	q := `INSERT INTO price_history
	        (target_id, price, currency, scraped_at, raw_html, screenshot_url,
	         proxy_used, user_agent, response_time_ms, content_hash)
	      VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, q, obs.TargetID, obs.Price, obs.Currency, raw,
		obs.ScreenshotURL, obs.ProxyUsed, obs.UserAgent, obs.ResponseTimeMS, obs.ContentHash)
	if err != nil {
		return fmt.Errorf("op=price.save target=%s: %w", obs.TargetID, err)
	}
	return nil
}

// CreateAlert appends an unresolved alert row.
func (s *PostgresStore) CreateAlert(ctx context.Context, productID, alertType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=alerts.encode type=%s: %w", alertType, err)
	}
	q := `INSERT INTO alerts (product_id, alert_type, payload, resolved, created_at)
	      VALUES ($1, $2, $3, FALSE, NOW())`
	if _, err := s.pool.Exec(ctx, q, productID, alertType, body); err != nil {
		return fmt.Errorf("op=alerts.create type=%s: %w", alertType, err)
	}
	return nil
}

// LatestPrice returns the newest observation for a target, or nil when none
// exists.
func (s *PostgresStore) LatestPrice(ctx context.Context, targetID string) (*types.LatestPrice, error) {
	q := `SELECT price, scraped_at
	      FROM price_history
	      WHERE target_id = $1
	      ORDER BY scraped_at DESC
	      LIMIT 1`
	var lp types.LatestPrice
	err := s.pool.QueryRow(ctx, q, targetID).Scan(&lp.Price, &lp.ScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("op=price.latest target=%s: %w", targetID, err)
	}
	return &lp, nil
}
