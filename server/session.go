package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/Mmx233/ProtoBridge/protocols"
	"github.com/Mmx233/ProtoBridge/server/pool"
	"github.com/Mmx233/ProtoBridge/translator"
	"github.com/rs/zerolog"
)

// syncWriter serializes frame writes of the two relay directions on the
// client side. Fatal disconnects are written from either direction.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type readWriter struct {
	io.Reader
	io.Writer
}

// serve runs one client connection until either side closes.
func (s *Server) serve(ctx context.Context, client io.ReadWriteCloser, remote string) {
	logger := s.logger.With().Str("remote", remote).Logger()
	defer client.Close()

	cr := bufio.NewReader(client)
	frame, err := protocol.ReadFrame(cr, 0)
	if err != nil {
		logger.Debug().Err(err).Msg("read handshake failed")
		return
	}
	hs, err := protocol.ParseHandshake(frame)
	if err != nil {
		logger.Debug().Err(err).Msg("invalid handshake")
		return
	}
	logger = logger.With().Int32("client_version", hs.ProtocolVersion).Logger()

	switch hs.NextState {
	case protocol.StateStatus, protocol.StateLogin:
	default:
		logger.Debug().Int32("next_state", hs.NextState).Msg("unknown handshake state")
		return
	}
	login := hs.NextState == protocol.StateLogin
	if login && hs.ProtocolVersion != s.proto.Current {
		s.disconnectLogin(client, fmt.Sprintf("This proxy only accepts %s clients.", protocols.Name(s.proto.Current)))
		s.metrics.session(OutcomeRejected)
		logger.Info().Msg("rejected unsupported client version")
		return
	}

	upstream, conn, err := s.dial(ctx)
	if err != nil {
		if login {
			s.disconnectLogin(client, "The server is not reachable right now.")
		}
		s.metrics.session(OutcomeUpstreamDown)
		logger.Warn().Err(err).Msg("no upstream available")
		return
	}
	defer conn.Close()
	release := upstream.Acquire()
	defer release()

	closeAll := func() {
		_ = client.Close()
		_ = conn.Close()
	}
	sess := pool.NewSession(remote, upstream.Addr, s.version, closeAll)
	sess.ClientVersion.Store(hs.ProtocolVersion)
	s.sessions.Add(sess)
	defer s.sessions.Remove(sess.ID.String())
	stop := context.AfterFunc(ctx, closeAll)
	defer stop()

	logger = logger.With().Str("session", sess.ID.String()).Str("upstream", upstream.Addr).Logger()

	hs.ProtocolVersion = s.version
	if err := protocol.WriteFrame(conn, hs.Encode()); err != nil {
		logger.Debug().Err(err).Msg("forward handshake failed")
		s.metrics.session(OutcomeError)
		return
	}

	if !login {
		sess.SetPhase(pool.PhaseStatus)
		_ = protocol.Relay(readWriter{Reader: cr, Writer: client}, conn)
		s.metrics.session(OutcomeStatus)
		return
	}

	outcome, err := s.play(sess, logger, cr, client, conn)
	s.metrics.session(outcome)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Info().Str("user", sess.Username()).Msg("session closed")
	case outcome == OutcomeFatal:
		logger.Warn().Err(err).Str("user", sess.Username()).Msg("session ended by translation failure")
	default:
		logger.Info().Err(err).Str("user", sess.Username()).Msg("session closed with error")
	}
}

// play completes the login and relays play traffic through a translator.
func (s *Server) play(sess *pool.Session, logger zerolog.Logger, cr *bufio.Reader, client io.ReadWriteCloser, conn net.Conn) (string, error) {
	t, err := translator.New(s.proto, translator.Config{
		PassthroughChannel: s.config.Translator.PassthroughChannel,
		FatalOnDrop:        s.config.Translator.FatalOnDrop,
		CacheSize:          s.config.Translator.CacheSize,
		Metrics:            s.tmetrics,
	}, logger)
	if err != nil {
		return OutcomeError, err
	}
	defer t.Close()
	if err := t.OnVersionNegotiated(s.version); err != nil {
		return OutcomeError, err
	}

	sess.SetPhase(pool.PhaseLogin)
	ur := bufio.NewReader(conn)
	if err := s.login(sess, cr, client, ur, conn); err != nil {
		s.metrics.loginFailure(loginFailureReason(err))
		return OutcomeRejected, err
	}

	active, err := t.EnterPlay()
	if err != nil {
		return OutcomeError, err
	}
	for ns, reg := range s.registries {
		if err := t.OnRegistriesResolved(ns, reg); err != nil {
			return OutcomeError, fmt.Errorf("install registry %s: %w", ns, err)
		}
	}
	sess.Translating.Store(active)
	sess.SetPhase(pool.PhasePlay)
	logger.Info().Str("user", sess.Username()).Bool("translating", active).Msg("entered play")

	err = s.relay(t, sess, cr, &syncWriter{w: client}, ur, conn, func() {
		_ = client.Close()
		_ = conn.Close()
	})
	var fe *translator.FatalError
	if errors.As(err, &fe) {
		return OutcomeFatal, err
	}
	return OutcomeClosed, err
}

// relay pumps frames in both directions until one of them ends, then closes
// both connections and waits for the other.
func (s *Server) relay(t *translator.Translator, sess *pool.Session, cr *bufio.Reader, client io.Writer, ur *bufio.Reader, upstream io.Writer, closeAll func()) error {
	errCh := make(chan error, 2)
	go func() {
		errCh <- pump(ur, client, t.TranslateInbound, &sess.FramesIn)
	}()
	go func() {
		errCh <- pump(cr, upstream, t.TranslateOutbound, &sess.FramesOut)
	}()

	err := <-errCh
	var fe *translator.FatalError
	if errors.As(err, &fe) {
		if frame, ferr := protocol.EncodeDisconnect(protocols.DisconnectPacketID, "Translation failed: "+fe.Error()); ferr == nil {
			_ = protocol.WriteFrame(client, frame)
		}
	}
	closeAll()
	<-errCh
	return err
}

// pump reads frames from r, translates them and writes the result to w.
func pump(r *bufio.Reader, w io.Writer, translate func([]byte) ([][]byte, error), frames *atomic.Uint64) error {
	for {
		frame, err := protocol.ReadFrame(r, 0)
		if err != nil {
			return err
		}
		out, err := translate(frame)
		if err != nil {
			return err
		}
		for _, f := range out {
			if err := protocol.WriteFrame(w, f); err != nil {
				return err
			}
		}
		frames.Add(uint64(len(out)))
	}
}

// dial connects to an upstream, trying each one at most once.
func (s *Server) dial(ctx context.Context) (*pool.Upstream, net.Conn, error) {
	var lastErr error
	attempts := len(s.upstreams.List())
	if attempts == 0 {
		return nil, nil, pool.ErrNoUpstreams
	}
	for i := 0; i < attempts; i++ {
		u, err := s.upstreams.Select()
		if err != nil {
			if lastErr != nil {
				return nil, nil, fmt.Errorf("%w (last dial error: %v)", err, lastErr)
			}
			return nil, nil, err
		}

		d := net.Dialer{Timeout: s.config.Upstream.DialTimeout}
		conn, err := d.DialContext(ctx, "tcp", u.Addr)
		if err == nil {
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetNoDelay(true)
			}
			return u, conn, nil
		}
		lastErr = err
		s.metrics.dialError(u.Addr)
		s.upstreams.MarkUnhealthy(u.Addr)
		s.logger.Warn().Err(err).Str("upstream", u.Addr).Msg("dial upstream failed")
	}
	return nil, nil, fmt.Errorf("dial upstream: %w", lastErr)
}
