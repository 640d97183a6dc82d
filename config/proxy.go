package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Mmx233/ProtoBridge/protocols"
)

type Proxy struct {
	Listen     Listen            `yaml:"listen"`
	Upstream   Upstream          `yaml:"upstream"`
	Translator Translator        `yaml:"translator"`
	Registries map[string]string `yaml:"registries"` // namespace -> mapping file
	Admin      Admin             `yaml:"admin"`
}

type Listen struct {
	// TCP is the address Minecraft clients connect to.
	TCP  string     `yaml:"tcp"`
	QUIC QuicListen `yaml:"quic"`
}

// QuicListen accepts sessions as QUIC streams. Disabled when Addr is empty.
type QuicListen struct {
	Addr string `yaml:"addr"`
	TLS  TLS    `yaml:"tls"`
	Quic `yaml:",inline"`
}

func (q QuicListen) Enabled() bool {
	return q.Addr != ""
}

type Upstream struct {
	// Version is a release name such as "1.16.5" or a protocol number.
	Version      string        `yaml:"version"`
	Servers      []string      `yaml:"servers"`
	LoadBalancer string        `yaml:"load_balancer"` // round-robin or least-sessions
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	// RetryAfter is how long a server stays unhealthy after a failed dial.
	RetryAfter time.Duration `yaml:"retry_after"`

	protocol int32
}

// Protocol returns the protocol number resolved by Validate.
func (u *Upstream) Protocol() int32 {
	return u.protocol
}

type Translator struct {
	PassthroughChannel string `yaml:"passthrough_channel"`
	FatalOnDrop        bool   `yaml:"fatal_on_drop"`
	CacheSize          int    `yaml:"cache_size"`
}

type Admin struct {
	// Addr of the metrics and inspection endpoint. Disabled when empty.
	Addr string `yaml:"addr"`
}

const (
	MinUpstreams = 1
	MaxUpstreams = 16
)

var ErrUnknownVersion = errors.New("unknown protocol version")

// ResolveVersion accepts a release name or a protocol number of a supported version.
func ResolveVersion(s string) (int32, error) {
	if v, ok := protocols.ByName(s); ok {
		return v, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err == nil {
		if _, ok := protocols.Lookup(int32(n)); ok {
			return int32(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

// Validate checks the configuration and resolves the upstream version.
// It expects ApplyDefaults to have run.
func (p *Proxy) Validate() error {
	if err := ValidateAddress(p.Listen.TCP, true); err != nil {
		return fmt.Errorf("listen.tcp: %w", err)
	}
	if p.Listen.QUIC.Enabled() {
		if err := ValidateAddress(p.Listen.QUIC.Addr, true); err != nil {
			return fmt.Errorf("listen.quic.addr: %w", err)
		}
		if p.Listen.QUIC.TLS.CertFile == "" || p.Listen.QUIC.TLS.KeyFile == "" {
			return fmt.Errorf("listen.quic.tls: cert_file and key_file are required")
		}
	}

	v, err := ResolveVersion(p.Upstream.Version)
	if err != nil {
		return fmt.Errorf("upstream.version: %w", err)
	}
	p.Upstream.protocol = v

	servers := p.Upstream.Servers
	if len(servers) < MinUpstreams {
		return fmt.Errorf("upstream.servers: at least %d server address must be provided", MinUpstreams)
	}
	if len(servers) > MaxUpstreams {
		return fmt.Errorf("upstream.servers: maximum %d server addresses allowed, got %d", MaxUpstreams, len(servers))
	}
	seen := make(map[string]bool, len(servers))
	for i, addr := range servers {
		if err := ValidateAddress(addr, false); err != nil {
			return fmt.Errorf("upstream.servers[%d]: %w", i, err)
		}
		if seen[addr] {
			return fmt.Errorf("upstream.servers[%d]: duplicate address %q", i, addr)
		}
		seen[addr] = true
	}
	switch p.Upstream.LoadBalancer {
	case LoadBalancerRoundRobin, LoadBalancerLeastSessions:
	default:
		return fmt.Errorf("upstream.load_balancer: unknown balancer %q", p.Upstream.LoadBalancer)
	}

	if p.Translator.CacheSize < 0 {
		return fmt.Errorf("translator.cache_size: must not be negative")
	}
	known := make(map[string]bool)
	for _, ns := range protocols.RegistryNamespaces() {
		known[ns] = true
	}
	for ns, file := range p.Registries {
		if !known[ns] {
			return fmt.Errorf("registries: unknown namespace %q", ns)
		}
		if file == "" {
			return fmt.Errorf("registries: empty mapping file for %q", ns)
		}
	}
	if p.Admin.Addr != "" {
		if err := ValidateAddress(p.Admin.Addr, true); err != nil {
			return fmt.Errorf("admin.addr: %w", err)
		}
	}
	return nil
}
