package fetcher

import (
	"math/rand"
)

// acceptLanguages is the fixed set of Accept-Language values rotated into
// request headers. The first entry is the default market.
var acceptLanguages = []string{
	"en-IN,en;q=0.9",
	"en-IN,en-GB;q=0.9,en;q=0.8",
	"en-IN,en-US;q=0.9,en;q=0.8",
}

// UAPool hands out user-agent strings and matching browser-like headers. It
// holds no state across calls.
type UAPool struct {
	agents []string
}

// NewUAPool creates a pool over the given user-agent list.
func NewUAPool(agents []string) *UAPool {
	return &UAPool{agents: agents}
}

// Pick returns one user agent uniformly at random.
func (p *UAPool) Pick() string {
	if len(p.agents) == 0 {
		return ""
	}
	return p.agents[rand.Intn(len(p.agents))]
}

// Headers returns a fresh header map for one request.
func (p *UAPool) Headers() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": acceptLanguages[rand.Intn(len(acceptLanguages))],
		"Accept-Encoding": "gzip, deflate, br",
	}
}
