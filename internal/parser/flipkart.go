package parser

import (
	"log/slog"

	"github.com/pricehound/pricehound/internal/types"
)

// FlipkartParser extracts prices from flipkart.com product pages.
type FlipkartParser struct {
	base
}

// NewFlipkartParser creates the flipkart.com parser.
func NewFlipkartParser(logger *slog.Logger) *FlipkartParser {
	return &FlipkartParser{base{domain: "flipkart.com", logger: logger.With("parser", "flipkart")}}
}

// ParsePrice implements Parser.
func (p *FlipkartParser) ParsePrice(rawHTML string) *types.PriceData {
	doc, err := parseDoc(rawHTML)
	if err != nil {
		p.logger.Warn("html parse failed", "error", err)
		return nil
	}

	if v, ok := selectorPrice(doc, "div._30jeq3._16Jk6d"); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodCSSSelector}
	}
	if v, ok := selectorPrice(doc, "._30jeq3"); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodAltSelector}
	}
	if v, currency, ok := jsonLDPrice(doc); ok {
		if currency == "" {
			currency = "INR"
		}
		return &types.PriceData{Price: v, Currency: currency, Method: methodJSONLD}
	}

	p.logger.Warn("could not extract price", "domain", p.domain)
	return nil
}
