// Package rpcclient is a JSON-RPC client for NFT interface nodes. Requests
// are spread over a pool of node URLs and fail over to the next endpoint on
// transport errors.
package rpcclient

import (
	"context"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed endpoint is skipped before it is
// tried again.
const DefaultCooldown = 10 * time.Second

// Endpoint represents an RPC endpoint with health tracking.
type Endpoint struct {
	URL         string
	Healthy     bool
	LastError   error
	LastFailure time.Time
	LastSuccess time.Time
	Latency     time.Duration
}

// Pool hands out endpoints and records the outcome of requests made to them.
type Pool interface {
	// GetEndpoint returns a healthy endpoint for making requests.
	// Returns an error if the pool holds no endpoints.
	GetEndpoint(ctx context.Context) (*Endpoint, error)

	// MarkUnhealthy marks an endpoint as unhealthy after a failed request.
	MarkUnhealthy(url string, err error)

	// MarkHealthy marks an endpoint as healthy after a successful request.
	MarkHealthy(url string, latency time.Duration)

	// GetHealthyCount returns the number of currently healthy endpoints.
	GetHealthyCount() int
}

// SimplePool is a round-robin Pool. Unhealthy endpoints are skipped until
// their cooldown expires.
type SimplePool struct {
	endpoints []*Endpoint
	cooldown  time.Duration
	mu        sync.Mutex
	idx       int
}

// NewSimplePool creates a new SimplePool with the given endpoints.
func NewSimplePool(urls []string) *SimplePool {
	endpoints := make([]*Endpoint, len(urls))
	for i, url := range urls {
		endpoints[i] = &Endpoint{
			URL:     url,
			Healthy: true,
		}
	}
	return &SimplePool{
		endpoints: endpoints,
		cooldown:  DefaultCooldown,
	}
}

// SetCooldown sets how long failed endpoints are skipped.
func (p *SimplePool) SetCooldown(cooldown time.Duration) {
	p.mu.Lock()
	p.cooldown = cooldown
	p.mu.Unlock()
}

// GetEndpoint returns the next available endpoint using round-robin.
func (p *SimplePool) GetEndpoint(ctx context.Context) (*Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	now := time.Now()
	for i := 0; i < len(p.endpoints); i++ {
		idx := (p.idx + i) % len(p.endpoints)
		ep := p.endpoints[idx]
		if ep.Healthy || now.Sub(ep.LastFailure) >= p.cooldown {
			p.idx = (idx + 1) % len(p.endpoints)
			return ep, nil
		}
	}

	// Every endpoint failed recently; keep rotating so one may recover.
	ep := p.endpoints[p.idx]
	p.idx = (p.idx + 1) % len(p.endpoints)
	return ep, nil
}

// MarkUnhealthy marks an endpoint as unhealthy.
func (p *SimplePool) MarkUnhealthy(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.URL == url {
			ep.Healthy = false
			ep.LastError = err
			ep.LastFailure = time.Now()
			return
		}
	}
}

// MarkHealthy marks an endpoint as healthy.
func (p *SimplePool) MarkHealthy(url string, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.URL == url {
			ep.Healthy = true
			ep.LastSuccess = time.Now()
			ep.Latency = latency
			ep.LastError = nil
			return
		}
	}
}

// GetHealthyCount returns the number of healthy endpoints.
func (p *SimplePool) GetHealthyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, ep := range p.endpoints {
		if ep.Healthy {
			count++
		}
	}
	return count
}
