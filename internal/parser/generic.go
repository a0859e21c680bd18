package parser

import (
	"log/slog"

	"github.com/pricehound/pricehound/internal/types"
)

// genericSelectors are the common price locations tried after JSON-LD, in
// rough order of specificity.
var genericSelectors = []string{
	"[itemprop=price]",
	".price",
	".Price",
	".sale-price",
	".a-price-whole",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
}

// GenericParser is the fallback for domains without a dedicated parser. It
// tries structured data first, then a fixed list of common selectors.
type GenericParser struct {
	base
}

// NewGenericParser creates the fallback parser.
func NewGenericParser(logger *slog.Logger) *GenericParser {
	return &GenericParser{base{domain: Fallback, logger: logger.With("parser", "generic")}}
}

// ParsePrice implements Parser.
func (p *GenericParser) ParsePrice(rawHTML string) *types.PriceData {
	doc, err := parseDoc(rawHTML)
	if err != nil {
		p.logger.Warn("html parse failed", "error", err)
		return nil
	}

	if v, currency, ok := jsonLDPrice(doc); ok {
		if currency == "" {
			currency = "INR"
		}
		return &types.PriceData{Price: v, Currency: currency, Method: methodJSONLD}
	}

	for _, selector := range genericSelectors {
		if v, ok := selectorPrice(doc, selector); ok {
			return &types.PriceData{Price: v, Currency: "INR", Method: methodCSSSelector}
		}
	}

	return nil
}
