package parser

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// Extraction method labels recorded with each observation.
const (
	methodCSSSelector = "css_selector"
	methodAltSelector = "alt_selector"
	methodItemprop    = "itemprop"
	methodJSONLD      = "json_ld"
)

// parseDoc builds a goquery document from raw HTML.
func parseDoc(rawHTML string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
}

// cleanPrice turns a currency-decorated string into a number. It strips
// everything but digits, dots, and commas, then drops comma thousands
// separators.
func cleanPrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// selectorPrice walks the matches of a CSS selector in document order,
// preferring the content attribute over the element text, and returns the
// first candidate that parses.
func selectorPrice(doc *goquery.Document, selector string) (float64, bool) {
	var price float64
	found := false

	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text, ok := sel.Attr("content")
		if !ok || strings.TrimSpace(text) == "" {
			text = sel.Text()
		}
		if v, ok := cleanPrice(text); ok {
			price, found = v, true
			return false
		}
		return true
	})

	return price, found
}

// itempropPrice matches any element carrying itemprop=price via XPath,
// reading the content attribute or inner text.
func itempropPrice(rawHTML string) (float64, bool) {
	root, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return 0, false
	}
	for _, node := range htmlquery.Find(root, `//*[@itemprop="price"]`) {
		text := htmlquery.SelectAttr(node, "content")
		if strings.TrimSpace(text) == "" {
			text = htmlquery.InnerText(node)
		}
		if v, ok := cleanPrice(text); ok {
			return v, true
		}
	}
	return 0, false
}

// jsonLDPrice walks <script type="application/ld+json"> blocks looking for an
// offers.price value. It tolerates single objects, arrays of objects, and
// offers given as either an object or a list.
func jsonLDPrice(doc *goquery.Document) (float64, string, bool) {
	var price float64
	var currency string
	found := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}

		for _, obj := range flattenLD(data) {
			if p, c, ok := offersPrice(obj); ok {
				price, currency, found = p, c, true
				return false
			}
		}
		return true
	})

	return price, currency, found
}

// flattenLD normalises a JSON-LD payload to a list of objects.
func flattenLD(data any) []map[string]any {
	switch v := data.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		var objs []map[string]any
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				objs = append(objs, obj)
			}
		}
		return objs
	default:
		return nil
	}
}

// offersPrice pulls price and currency out of a JSON-LD object's offers.
func offersPrice(obj map[string]any) (float64, string, bool) {
	offers, ok := obj["offers"]
	if !ok {
		return 0, "", false
	}

	var candidates []map[string]any
	switch v := offers.(type) {
	case map[string]any:
		candidates = []map[string]any{v}
	case []any:
		for _, item := range v {
			if o, ok := item.(map[string]any); ok {
				candidates = append(candidates, o)
			}
		}
	}

	for _, offer := range candidates {
		price, ok := toPrice(offer["price"])
		if !ok {
			continue
		}
		currency, _ := offer["priceCurrency"].(string)
		return price, currency, true
	}
	return 0, "", false
}

// toPrice accepts the price however JSON-LD spelled it.
func toPrice(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		if p > 0 {
			return p, true
		}
	case string:
		return cleanPrice(p)
	case json.Number:
		f, err := p.Float64()
		if err == nil && f > 0 {
			return f, true
		}
	}
	return 0, false
}
