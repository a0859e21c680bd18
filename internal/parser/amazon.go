package parser

import (
	"log/slog"

	"github.com/pricehound/pricehound/internal/types"
)

// AmazonParser extracts prices from amazon.in product pages. Strategies run
// in order of selector stability; the first hit wins.
type AmazonParser struct {
	base
}

// NewAmazonParser creates the amazon.in parser.
func NewAmazonParser(logger *slog.Logger) *AmazonParser {
	return &AmazonParser{base{domain: "amazon.in", logger: logger.With("parser", "amazon")}}
}

// ParsePrice implements Parser.
func (p *AmazonParser) ParsePrice(rawHTML string) *types.PriceData {
	doc, err := parseDoc(rawHTML)
	if err != nil {
		p.logger.Warn("html parse failed", "error", err)
		return nil
	}

	if v, ok := selectorPrice(doc, ".a-price-whole"); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodCSSSelector}
	}
	if v, ok := selectorPrice(doc, "#priceblock_ourprice"); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodAltSelector}
	}
	if v, ok := selectorPrice(doc, "#priceblock_dealprice"); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodAltSelector}
	}
	if v, ok := itempropPrice(rawHTML); ok {
		return &types.PriceData{Price: v, Currency: "INR", Method: methodItemprop}
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
