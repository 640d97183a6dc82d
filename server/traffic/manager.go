// Package traffic accepts game client connections and hands them to the proxy.
package traffic

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler serves one accepted connection. It must return once ctx is done.
type Handler func(ctx context.Context, conn net.Conn)

// Manager manages traffic listeners
type Manager struct {
	addrs     []string
	handler   Handler
	listeners []*Listener
	logger    zerolog.Logger
	mu        sync.Mutex
	conns     sync.WaitGroup
}

// Listener represents a traffic listener
type Listener struct {
	Addr        string
	TCPListener net.Listener

	handler Handler
	conns   *sync.WaitGroup
	accept  sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// NewManager creates a new traffic manager
func NewManager(addrs []string, handler Handler, logger zerolog.Logger) *Manager {
	return &Manager{
		addrs:     addrs,
		handler:   handler,
		listeners: make([]*Listener, 0, len(addrs)),
		logger:    logger.With().Str("com", "traffic").Logger(),
	}
}

// Start starts all traffic listeners
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, addr := range m.addrs {
		listener := &Listener{
			Addr:    addr,
			handler: m.handler,
			conns:   &m.conns,
			logger:  m.logger.With().Str("listen", addr).Logger(),
		}
		listener.ctx, listener.cancel = context.WithCancel(ctx)

		if err := listener.startTCP(); err != nil {
			listener.cancel()
			m.stopLocked()
			return fmt.Errorf("start TCP listener on %s: %w", addr, err)
		}
		m.listeners = append(m.listeners, listener)
	}

	m.logger.Info().Int("count", len(m.listeners)).Msg("all traffic listeners started")
	return nil
}

// Addrs returns the bound address of every listener.
func (m *Manager) Addrs() []net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]net.Addr, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l.TCPListener.Addr())
	}
	return out
}

// Stop closes every listener, cancels running handlers and waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()

	m.conns.Wait()
	m.logger.Info().Msg("traffic listeners stopped")
}

func (m *Manager) stopLocked() {
	for _, listener := range m.listeners {
		listener.cancel()
		_ = listener.TCPListener.Close()
		listener.accept.Wait()
	}
	m.listeners = m.listeners[:0]
}
