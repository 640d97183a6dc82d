// Package server runs the translating proxy: it accepts current-version
// clients, dials a legacy upstream and relays play traffic through a
// per-session translator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/ProtoBridge/config"
	"github.com/Mmx233/ProtoBridge/server/pool"
	"github.com/Mmx233/ProtoBridge/server/traffic"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/Mmx233/ProtoBridge/translator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options carries what the proxy needs beyond its configuration.
type Options struct {
	Protocol   *translator.Protocol
	Registries map[string]*session.Registry
	// Registerer receives the proxy and translator metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// Server represents the translating proxy
type Server struct {
	config     *config.Proxy
	proto      *translator.Protocol
	version    int32 // upstream protocol
	registries map[string]*session.Registry

	upstreams      *pool.UpstreamPool
	sessions       *pool.Sessions
	trafficManager *traffic.Manager
	metrics        *Metrics
	tmetrics       *translator.Metrics
	logger         zerolog.Logger

	quicAddr atomic.Value // net.Addr
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	errCh    chan error
}

// New creates a new server. conf must have passed Validate.
func New(conf *config.Proxy, opts Options) (*Server, error) {
	logger := log.With().Str("com", "server").Logger()

	if opts.Protocol == nil {
		return nil, errors.New("protocol definitions are required")
	}
	version := conf.Upstream.Protocol()
	if !opts.Protocol.Supports(version) {
		return nil, fmt.Errorf("upstream version %d: %w", version, translator.ErrUnknownProtocol)
	}

	if conf.Listen.QUIC.Enabled() {
		if err := conf.Listen.QUIC.TLS.LoadCertificates(); err != nil {
			return nil, fmt.Errorf("load certificates: %w", err)
		}
	}

	balancer, err := pool.NewBalancer(conf.Upstream.LoadBalancer)
	if err != nil {
		return nil, err
	}
	upstreams := pool.New(conf.Upstream.Servers, balancer, conf.Upstream.RetryAfter, logger)
	logger.Info().
		Strs("upstreams", conf.Upstream.Servers).
		Str("balancer", balancer.Name()).
		Int32("upstream_version", version).
		Msg("created upstream pool")

	s := &Server{
		config:     conf,
		proto:      opts.Protocol,
		version:    version,
		registries: opts.Registries,
		upstreams:  upstreams,
		sessions:   pool.NewSessions(),
		logger:     logger,
		errCh:      make(chan error, 1),
	}
	if opts.Registerer != nil {
		s.metrics = NewMetrics(opts.Registerer, s.sessions)
		s.tmetrics = translator.NewMetrics(opts.Registerer)
	}
	return s, nil
}

// Sessions returns the live session table.
func (s *Server) Sessions() *pool.Sessions {
	return s.sessions
}

// Upstreams returns the upstream pool.
func (s *Server) Upstreams() *pool.UpstreamPool {
	return s.upstreams
}

// TCPAddrs returns the bound addresses of the TCP listeners.
func (s *Server) TCPAddrs() []net.Addr {
	if s.trafficManager == nil {
		return nil
	}
	return s.trafficManager.Addrs()
}

// QUICAddr returns the bound address of the QUIC listener, or nil.
func (s *Server) QUICAddr() net.Addr {
	addr, _ := s.quicAddr.Load().(net.Addr)
	return addr
}

// Start starts the listeners and returns once they are bound.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.trafficManager = traffic.NewManager([]string{s.config.Listen.TCP}, s.handleTCP, s.logger)
	if err := s.trafficManager.Start(ctx); err != nil {
		s.cancel()
		return fmt.Errorf("start traffic manager: %w", err)
	}

	if s.config.Listen.QUIC.Enabled() {
		ln, err := s.listenQUIC(ctx)
		if err != nil {
			s.cancel()
			s.trafficManager.Stop()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.serveQUIC(ctx, ln); err != nil {
				select {
				case s.errCh <- err:
				default:
				}
			}
		}()
	}
	return nil
}

// Err reports a listener failure after Start.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Stop closes every listener and session and waits for them to end.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.trafficManager != nil {
		s.trafficManager.Stop()
	}
	s.wg.Wait()
	s.logger.Info().Msg("server stopped")
}

// Run starts a server and blocks until ctx is cancelled or a listener fails.
func Run(ctx context.Context, conf *config.Proxy, opts Options) error {
	srv, err := New(conf, opts)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Stop()

	select {
	case err := <-srv.Err():
		return err
	case <-ctx.Done():
		srv.logger.Info().Msg("server shutting down")
		return ctx.Err()
	}
}

func (s *Server) handleTCP(ctx context.Context, conn net.Conn) {
	s.serve(ctx, conn, conn.RemoteAddr().String())
}
