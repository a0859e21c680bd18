package fetcher

import (
	"context"
	"time"

	"github.com/pricehound/pricehound/internal/types"
)

// PageFetcher is the contract the worker pipeline depends on. The browser
// engine behind it is a black box; implementations return rendered HTML plus
// fetch provenance.
type PageFetcher interface {
	// Fetch retrieves the content at url. Implementations must release all
	// browser resources on every exit path.
	Fetch(ctx context.Context, url string, opts FetchOptions) (*types.FetchResult, error)
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	// Timeout bounds the navigation. Zero means the fetcher default.
	Timeout time.Duration

	// WaitForSelector, when set, is awaited after navigation.
	WaitForSelector string
}
