package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/Mmx233/ProtoBridge/server/tls/stek"
	"github.com/quic-go/quic-go"
)

// quicListener bundles the QUIC listener with what must be closed after it.
type quicListener struct {
	ln      *quic.Listener
	tr      *quic.Transport
	udpConn *net.UDPConn
	rotator *stek.Rotator
}

func (l *quicListener) Close() {
	_ = l.ln.Close()
	_ = l.tr.Close()
	_ = l.udpConn.Close()
	if l.rotator != nil {
		l.rotator.Stop()
	}
}

// streamConn is one client session carried by a QUIC stream.
type streamConn struct {
	*quic.Stream
}

func (c streamConn) Close() error {
	c.CancelRead(0)
	return c.Stream.Close()
}

// listenQUIC binds the QUIC listener. Each bidirectional stream of an
// accepted connection carries one game session.
func (s *Server) listenQUIC(ctx context.Context) (*quicListener, error) {
	conf := s.config.Listen.QUIC

	udpAddr, err := net.ResolveUDPAddr("udp", conf.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve QUIC address: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}
	tr := &quic.Transport{Conn: udpConn}

	tlsConf := conf.TLS.Config()
	var rotator *stek.Rotator
	if conf.TLS.SessionTicketKeyRotationInterval > 0 {
		rotator, err = stek.NewRotator(conf.TLS.SessionTicketKeyRotationInterval, conf.TLS.SessionTicketKeyRotationOverlap, s.logger)
		if err != nil {
			_ = udpConn.Close()
			return nil, fmt.Errorf("initialize session ticket key rotation: %w", err)
		}
		tlsConf = rotator.Wrap(tlsConf)
	}

	ln, err := tr.Listen(tlsConf, conf.GetConfig())
	if err != nil {
		_ = udpConn.Close()
		return nil, fmt.Errorf("listen QUIC: %w", err)
	}
	if rotator != nil {
		rotator.Start(ctx)
	}

	s.quicAddr.Store(udpConn.LocalAddr())
	s.logger.Info().Str("quic_addr", udpConn.LocalAddr().String()).Msg("QUIC listener started")
	return &quicListener{ln: ln, tr: tr, udpConn: udpConn, rotator: rotator}, nil
}

// serveQUIC accepts connections until ctx ends.
func (s *Server) serveQUIC(ctx context.Context, l *quicListener) error {
	defer l.Close()

	for {
		conn, err := l.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept QUIC connection: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleQUICConn(ctx, conn)
		}()
	}
}

func (s *Server) handleQUICConn(ctx context.Context, conn *quic.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With().Str("remote", remote).Str("transport", "quic").Logger()
	logger.Debug().Msg("new QUIC connection")
	defer func() {
		_ = conn.CloseWithError(0, "")
	}()

	var streams sync.WaitGroup
	defer streams.Wait()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("QUIC connection closed")
			return
		}
		streams.Add(1)
		go func() {
			defer streams.Done()
			s.serve(ctx, streamConn{Stream: stream}, remote)
		}()
	}
}
