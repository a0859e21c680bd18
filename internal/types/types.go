package types

import "time"

// Job status values as stored in scrape_jobs.status.
const (
	JobPending = "pending"
	JobSuccess = "success"
	JobFailed  = "failed"
	JobCaptcha = "captcha"
)

// Alert type values as stored in alerts.alert_type.
const (
	AlertCaptcha        = "captcha_encounter"
	AlertPriceDrop      = "price_drop"
	AlertRepeatedErrors = "repeated_errors"
)

// Target is a (product, domain, URL) triple to be scraped. Rows come from the
// targets table joined with products for alert context; the crawler never
// writes them.
type Target struct {
	ID        string
	ProductID string
	Domain    string
	URL       string
	Active    bool

	// Joined product columns.
	SKU   string
	Title string
	Brand string
}

// ScrapeJob is the unit of work keyed by target. Its id equals the target id,
// so at most one job row exists per target and the scheduler upserts it.
type ScrapeJob struct {
	ID        string
	TargetID  string
	Status    string
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceObservation is one price sample with provenance, appended to
// price_history after a successful scrape.
type PriceObservation struct {
	TargetID       string
	Price          float64
	Currency       string
	ScrapedAt      time.Time
	RawHTML        string
	ScreenshotURL  string
	ProxyUsed      string
	UserAgent      string
	ResponseTimeMS int
	ContentHash    string
}

// LatestPrice is the most recent observation for a target, used for the
// price-drop comparison.
type LatestPrice struct {
	Price     float64
	ScrapedAt time.Time
}

// FetchResult is what the page fetcher hands back for one rendered page.
type FetchResult struct {
	Status         int
	HTML           string
	ScreenshotURL  string
	Proxy          string
	UserAgent      string
	ResponseTimeMS int
}

// PriceData is the outcome of a successful price extraction.
type PriceData struct {
	Price    float64
	Currency string
	Method   string
}
