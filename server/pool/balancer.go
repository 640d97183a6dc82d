package pool

import (
	"fmt"
	"sync/atomic"
)

// LoadBalancer selects an upstream from the pool
type LoadBalancer interface {
	// Select chooses an upstream among the healthy ones
	Select(upstreams []*Upstream) (*Upstream, error)

	// Name returns the balancer name
	Name() string
}

// NewBalancer returns the balancer registered under name.
func NewBalancer(name string) (LoadBalancer, error) {
	switch name {
	case "round-robin":
		return NewRoundRobinBalancer(), nil
	case "least-sessions", "":
		return NewLeastSessionsBalancer(), nil
	default:
		return nil, fmt.Errorf("unknown load balancer %q", name)
	}
}

// healthyOf returns upstreams itself when every entry is healthy, so the
// common case does not allocate.
func healthyOf(upstreams []*Upstream) []*Upstream {
	allHealthy := true
	for _, u := range upstreams {
		if !u.healthy.Load() {
			allHealthy = false
			break
		}
	}
	if allHealthy {
		return upstreams
	}

	healthy := make([]*Upstream, 0, len(upstreams))
	for _, u := range upstreams {
		if u.healthy.Load() {
			healthy = append(healthy, u)
		}
	}
	return healthy
}

// RoundRobinBalancer implements round-robin load balancing
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{}
}

func (r *RoundRobinBalancer) Select(upstreams []*Upstream) (*Upstream, error) {
	if len(upstreams) == 0 {
		return nil, ErrNoUpstreams
	}
	healthy := healthyOf(upstreams)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyUpstreams
	}

	idx := (r.counter.Add(1) - 1) % uint64(len(healthy))
	return healthy[idx], nil
}

func (r *RoundRobinBalancer) Name() string {
	return "round-robin"
}

// LeastSessionsBalancer picks the upstream with the fewest active sessions.
// Ties go to the upstream listed first.
type LeastSessionsBalancer struct{}

func NewLeastSessionsBalancer() *LeastSessionsBalancer {
	return &LeastSessionsBalancer{}
}

func (l *LeastSessionsBalancer) Select(upstreams []*Upstream) (*Upstream, error) {
	if len(upstreams) == 0 {
		return nil, ErrNoUpstreams
	}
	healthy := healthyOf(upstreams)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyUpstreams
	}

	var selected *Upstream
	minSessions := int64(^uint64(0) >> 1) // Max int64
	for _, u := range healthy {
		if n := u.ActiveSessions.Load(); n < minSessions {
			minSessions = n
			selected = u
		}
	}
	return selected, nil
}

func (l *LeastSessionsBalancer) Name() string {
	return "least-sessions"
}
