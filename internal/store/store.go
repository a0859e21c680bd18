// Package store persists jobs, price observations, and alert rows in
// PostgreSQL and serves the reads the scheduler and worker need.
package store

import (
	"context"

	"github.com/pricehound/pricehound/internal/types"
)

// Store is the persistence surface shared by the scheduler and the worker.
type Store interface {
	// ActiveTargets returns every active target joined with its product.
	ActiveTargets(ctx context.Context) ([]types.Target, error)

	// UpsertPendingJob inserts a pending job keyed by target id, or resets
	// an existing row to pending and bumps its attempt count.
	UpsertPendingJob(ctx context.Context, targetID string) error

	// UpdateJob transitions a job to the given status. lastError may be
	// empty, which clears the stored error.
	UpdateJob(ctx context.Context, jobID, status, lastError string) error

	// SavePriceObservation appends one observation to the price history.
	SavePriceObservation(ctx context.Context, obs types.PriceObservation) error

	// CreateAlert appends an alert row with a JSON payload.
	CreateAlert(ctx context.Context, productID, alertType string, payload map[string]any) error

	// LatestPrice returns the most recent observation for a target, or nil
	// when the target has never been observed.
	LatestPrice(ctx context.Context, targetID string) (*types.LatestPrice, error)
}
