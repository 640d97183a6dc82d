package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// UpstreamPool holds the legacy servers sessions are forwarded to
type UpstreamPool struct {
	mu         sync.RWMutex
	upstreams  map[string]*Upstream // addr -> upstream
	order      []*Upstream          // configuration order, read lock-free by Select
	balancer   LoadBalancer
	retryAfter time.Duration
	logger     zerolog.Logger

	now func() time.Time
}

// Upstream is one legacy server
type Upstream struct {
	Addr string

	// Session tracking
	ActiveSessions atomic.Int64
	TotalSessions  atomic.Uint64
	FailedDials    atomic.Uint64

	// Health. A failed dial parks the upstream until retryAt.
	healthy atomic.Bool
	retryAt atomic.Int64
}

func (u *Upstream) Healthy() bool {
	return u.healthy.Load()
}

// New creates a pool over addrs. Every upstream starts healthy.
func New(addrs []string, balancer LoadBalancer, retryAfter time.Duration, logger zerolog.Logger) *UpstreamPool {
	p := &UpstreamPool{
		upstreams:  make(map[string]*Upstream, len(addrs)),
		order:      make([]*Upstream, 0, len(addrs)),
		balancer:   balancer,
		retryAfter: retryAfter,
		logger:     logger.With().Str("balancer", balancer.Name()).Logger(),
		now:        time.Now,
	}
	for _, addr := range addrs {
		if _, ok := p.upstreams[addr]; ok {
			continue
		}
		u := &Upstream{Addr: addr}
		u.healthy.Store(true)
		p.upstreams[addr] = u
		p.order = append(p.order, u)
	}
	return p
}

// Select chooses an upstream using the load balancer. Upstreams whose
// retry delay has passed are healthy again.
func (p *UpstreamPool) Select() (*Upstream, error) {
	p.mu.RLock()
	upstreams := p.order
	p.mu.RUnlock()

	if len(upstreams) == 0 {
		return nil, ErrNoUpstreams
	}
	now := p.now().UnixNano()
	for _, u := range upstreams {
		if !u.healthy.Load() && now >= u.retryAt.Load() {
			if u.healthy.CompareAndSwap(false, true) {
				p.logger.Info().Str("upstream", u.Addr).Msg("upstream back in rotation")
			}
		}
	}
	return p.balancer.Select(upstreams)
}

// Get retrieves a specific upstream by address
func (p *UpstreamPool) Get(addr string) (*Upstream, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, exists := p.upstreams[addr]
	return u, exists
}

// List returns all upstreams in configuration order
func (p *UpstreamPool) List() []*Upstream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Upstream(nil), p.order...)
}

// HealthyCount returns the number of healthy upstreams
func (p *UpstreamPool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, u := range p.order {
		if u.healthy.Load() {
			count++
		}
	}
	return count
}

// MarkUnhealthy takes an upstream out of rotation for the retry delay
func (p *UpstreamPool) MarkUnhealthy(addr string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if u, exists := p.upstreams[addr]; exists {
		u.FailedDials.Add(1)
		u.retryAt.Store(p.now().Add(p.retryAfter).UnixNano())
		if u.healthy.CompareAndSwap(true, false) {
			p.logger.Warn().Str("upstream", addr).Dur("retry_after", p.retryAfter).Msg("upstream marked unhealthy")
		}
	}
}

// Acquire counts a new session on u. The returned func releases it.
func (u *Upstream) Acquire() func() {
	u.ActiveSessions.Add(1)
	u.TotalSessions.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { u.ActiveSessions.Add(-1) })
	}
}

// Errors
var (
	ErrNoUpstreams        = errors.New("no upstream servers configured")
	ErrNoHealthyUpstreams = errors.New("no healthy upstream servers available")
)
