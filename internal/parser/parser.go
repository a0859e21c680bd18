// Package parser extracts prices from rendered product pages. Each supported
// domain gets its own Parser; a generic fallback covers everything else.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/pricehound/pricehound/internal/types"
)

// Fallback is the registry key for the catch-all parser.
const Fallback = "*"

// captchaMarkers are the substrings that indicate a human-verification wall.
// Matching is case-insensitive.
var captchaMarkers = []string{
	"recaptcha",
	"g-recaptcha",
	"captcha",
	"cf-chl-manual-challenge",
	"verify you are human",
	"robot check",
	"security check",
}

// Parser is the per-domain extraction capability set.
type Parser interface {
	// Domain returns the canonical host this parser targets.
	Domain() string

	// DetectCaptcha reports whether the page is a verification wall.
	DetectCaptcha(html string) bool

	// ParsePrice extracts a price, or nil when no strategy succeeds.
	ParsePrice(html string) *types.PriceData

	// ContentHash fingerprints the page content.
	ContentHash(html string) string
}

// base carries the behavior shared by every parser.
type base struct {
	domain string
	logger *slog.Logger
}

func (b base) Domain() string { return b.domain }

// DetectCaptcha scans for any known marker, case-insensitively.
func (b base) DetectCaptcha(html string) bool {
	low := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(low, marker) {
			b.logger.Warn("captcha detected", "domain", b.domain)
			return true
		}
	}
	return false
}

// ContentHash returns the first 16 hex chars of the SHA-256 of the HTML.
func (b base) ContentHash(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])[:16]
}

// Registry maps canonical domains to parsers with a fallback entry.
type Registry struct {
	parsers map[string]Parser
	logger  *slog.Logger
}

// NewRegistry creates a registry pre-populated with the supported domains and
// the generic fallback.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		logger:  logger.With("component", "parser_registry"),
	}
	r.Register(NewAmazonParser(logger))
	r.Register(NewFlipkartParser(logger))
	r.Register(NewGenericParser(logger))
	return r
}

// Register adds a parser under its own domain.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Domain()] = p
}

// Get returns the exact-domain parser, else the fallback. The second return
// is false only when neither exists.
func (r *Registry) Get(domain string) (Parser, bool) {
	if p, ok := r.parsers[domain]; ok {
		return p, true
	}
	if p, ok := r.parsers[Fallback]; ok {
		return p, true
	}
	return nil, false
}
