package traffic

import (
	"fmt"
	"net"
)

// startTCP starts the TCP listener
func (l *Listener) startTCP() error {
	lc := net.ListenConfig{
		Control: setSocketOptions,
	}
	listener, err := lc.Listen(l.ctx, "tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	l.TCPListener = listener
	l.logger.Info().Str("addr", listener.Addr().String()).Msg("TCP listener started")

	l.accept.Add(1)
	go l.acceptTCP()
	return nil
}

// acceptTCP accepts TCP connections
func (l *Listener) acceptTCP() {
	defer l.accept.Done()
	for {
		conn, err := l.TCPListener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				l.logger.Warn().Err(err).Msg("accept TCP connection failed")
				continue
			}
			l.logger.Error().Err(err).Msg("TCP listener closed")
			return
		}

		// Game traffic is many small frames
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		l.conns.Add(1)
		go l.handleTCPConnection(conn)
	}
}

// handleTCPConnection closes conn once the handler returns or the listener stops
func (l *Listener) handleTCPConnection(conn net.Conn) {
	defer l.conns.Done()
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-l.ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	l.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("new TCP connection")
	l.handler(l.ctx, conn)
}
