package proxy

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped.
const DefaultCooldown = 5 * time.Minute

// ProxyPool manages a list of proxies with rotation and failure cooldown
type ProxyPool struct {
	proxies  []string
	index    int
	mu       sync.Mutex
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewProxyPoolWithCooldown creates a ProxyPool that skips a failed proxy for
// cooldown. A non-positive cooldown uses DefaultCooldown.
func NewProxyPoolWithCooldown(proxies []string, cooldown time.Duration) *ProxyPool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &ProxyPool{
		proxies:  proxies,
		failed:   make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Len returns the number of configured proxies
func (p *ProxyPool) Len() int {
	return len(p.proxies)
}

// GetNext returns the next healthy proxy from the pool, or "" when the pool is empty
func (p *ProxyPool) GetNext() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[proxy]; ok {
			if p.now().Sub(failTime) < p.cooldown {
				if p.index == start {
					// Every proxy is cooling down; hand out the current one anyway.
					return proxy
				}
				continue
			}
			delete(p.failed, proxy)
		}

		return proxy
	}
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *ProxyPool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *ProxyPool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
