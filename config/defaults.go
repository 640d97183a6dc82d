package config

import (
	"time"

	"github.com/Mmx233/ProtoBridge/translator"
)

// ALPN is negotiated on the QUIC listener.
const ALPN = "protobridge"

// Load balancer names.
const (
	LoadBalancerRoundRobin    = "round-robin"
	LoadBalancerLeastSessions = "least-sessions"
)

// Default timeout and interval values
const (
	DefaultTCPAddr = ":25565"

	// DefaultDialTimeout bounds connecting to an upstream server
	DefaultDialTimeout = 5 * time.Second

	// DefaultRetryAfter is how long a failed upstream is skipped
	DefaultRetryAfter = 10 * time.Second

	// DefaultMaxIdleTimeout is the default QUIC connection idle timeout
	DefaultMaxIdleTimeout = 5 * time.Minute

	// DefaultSessionTicketKeyRotationOverlap is the number of ticket keys kept
	DefaultSessionTicketKeyRotationOverlap = 2
)

// ApplyDefaults fills zero-value fields.
func (p *Proxy) ApplyDefaults() {
	if p.Listen.TCP == "" {
		p.Listen.TCP = DefaultTCPAddr
	}
	if p.Listen.QUIC.TLS.SessionTicketKeyRotationOverlap == 0 {
		p.Listen.QUIC.TLS.SessionTicketKeyRotationOverlap = DefaultSessionTicketKeyRotationOverlap
	}
	if p.Upstream.LoadBalancer == "" {
		p.Upstream.LoadBalancer = LoadBalancerLeastSessions
	}
	if p.Upstream.DialTimeout == 0 {
		p.Upstream.DialTimeout = DefaultDialTimeout
	}
	if p.Upstream.RetryAfter == 0 {
		p.Upstream.RetryAfter = DefaultRetryAfter
	}
	if p.Translator.PassthroughChannel == "" {
		p.Translator.PassthroughChannel = translator.DefaultPassthroughChannel
	}
}
