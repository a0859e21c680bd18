package fetcher

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Health thresholds for the per-proxy state machine.
const (
	badThreshold = 3
	recoveryTime = 300 * time.Second
)

// ProxyHealth tracks failures for a single proxy. The pool is process-local;
// two workers degrade the same proxy independently.
type ProxyHealth struct {
	Proxy       string
	Failures    int
	LastFailure time.Time
	LastSuccess time.Time
}

// PoolStats is a point-in-time summary of proxy health.
type PoolStats struct {
	Total    int
	Healthy  int
	Degraded int
}

// ProxyPool selects proxies and tracks their health. A proxy is eligible
// while its failure count is under the threshold, or once it has been quiet
// long enough to probe again; a probe failure sends it straight back to
// degraded.
type ProxyPool struct {
	proxies []string
	health  map[string]*ProxyHealth
	mu      sync.Mutex
	logger  *slog.Logger
	now     func() time.Time
}

// NewProxyPool creates a pool from a static proxy list. An empty list means
// all fetches go direct.
func NewProxyPool(proxies []string, logger *slog.Logger) *ProxyPool {
	health := make(map[string]*ProxyHealth, len(proxies))
	for _, p := range proxies {
		health[p] = &ProxyHealth{Proxy: p}
	}
	pp := &ProxyPool{
		proxies: append([]string(nil), proxies...),
		health:  health,
		logger:  logger.With("component", "proxy_pool"),
		now:     time.Now,
	}
	pp.logger.Info("proxy pool initialized", "count", len(proxies))
	return pp
}

// Select returns a random eligible proxy, falling back to the full list when
// every proxy is degraded. It returns "" only when the list is empty.
func (pp *ProxyPool) Select() string {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if len(pp.proxies) == 0 {
		return ""
	}

	now := pp.now()
	candidates := make([]string, 0, len(pp.proxies))
	for _, p := range pp.proxies {
		h := pp.health[p]
		if h.Failures < badThreshold || now.Sub(h.LastFailure) > recoveryTime {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		pp.logger.Warn("no healthy proxies available, using any proxy")
		candidates = pp.proxies
	}

	return candidates[rand.Intn(len(candidates))]
}

// MarkFailure records a failed fetch through the proxy. Unknown proxies
// (including the empty direct-connection marker) are ignored.
func (pp *ProxyPool) MarkFailure(proxy string, err error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	h, ok := pp.health[proxy]
	if !ok {
		return
	}
	h.Failures++
	h.LastFailure = pp.now()
	pp.logger.Warn("proxy failure marked", "proxy", truncateProxy(proxy), "failures", h.Failures, "error", err)
}

// MarkSuccess records a successful fetch, decaying the failure count.
func (pp *ProxyPool) MarkSuccess(proxy string) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	h, ok := pp.health[proxy]
	if !ok {
		return
	}
	if h.Failures > 0 {
		h.Failures--
	}
	h.LastSuccess = pp.now()
	pp.logger.Debug("proxy success", "proxy", truncateProxy(proxy))
}

// Stats summarizes the pool. Healthy counts proxies under the failure
// threshold; everything else is degraded regardless of recovery eligibility.
func (pp *ProxyPool) Stats() PoolStats {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	healthy := 0
	for _, h := range pp.health {
		if h.Failures < badThreshold {
			healthy++
		}
	}
	return PoolStats{
		Total:    len(pp.proxies),
		Healthy:  healthy,
		Degraded: len(pp.proxies) - healthy,
	}
}

// truncateProxy keeps credentials embedded in proxy URLs out of logs.
func truncateProxy(proxy string) string {
	if len(proxy) <= 20 {
		return proxy
	}
	return proxy[:20] + "..."
}
