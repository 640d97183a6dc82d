package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/Mmx233/ProtoBridge/protocols"
	"github.com/Mmx233/ProtoBridge/server/pool"
	"github.com/google/uuid"
)

// Login failures. Each one has already been reported to the client.
var (
	ErrLoginRejected = errors.New("upstream rejected login")
	ErrOnlineMode    = errors.New("upstream requires encryption")
	ErrCompression   = errors.New("upstream enabled compression")
)

const (
	reasonOnlineMode  = "The server behind this proxy runs in online mode, which is not supported. Set online-mode=false in its server.properties."
	reasonCompression = "The server behind this proxy enabled compression, which is not supported. Set network-compression-threshold=-1 in its server.properties."
)

// loginFailureReason names err for metrics.
func loginFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrLoginRejected):
		return "rejected"
	case errors.Is(err, ErrOnlineMode):
		return "online_mode"
	case errors.Is(err, ErrCompression):
		return "compression"
	default:
		return "error"
	}
}

// login relays the login phase between a current client and the upstream,
// rewriting the frames whose layout differs. It returns once the client has
// received its login success frame.
func (s *Server) login(sess *pool.Session, client *bufio.Reader, clientW io.Writer, upstream *bufio.Reader, upstreamW io.Writer) error {
	frame, err := protocol.ReadFrame(client, 0)
	if err != nil {
		return fmt.Errorf("read login start: %w", err)
	}
	name, err := parseLoginStart(frame)
	if err != nil {
		return err
	}
	sess.SetUsername(name)
	if s.version != s.proto.Current {
		frame = encodeLoginStart(name)
	}
	if err := protocol.WriteFrame(upstreamW, frame); err != nil {
		return err
	}

	for {
		frame, err := protocol.ReadFrame(upstream, 0)
		if err != nil {
			return fmt.Errorf("read upstream login frame: %w", err)
		}
		id, body, err := protocol.SplitPacketID(frame)
		if err != nil {
			return err
		}

		switch id {
		case protocol.PacketIDLoginDisconnect:
			_ = protocol.WriteFrame(clientW, frame)
			return ErrLoginRejected
		case protocol.PacketIDEncryptionRequest:
			s.disconnectLogin(clientW, reasonOnlineMode)
			return ErrOnlineMode
		case protocol.PacketIDSetCompression:
			s.disconnectLogin(clientW, reasonCompression)
			return ErrCompression
		case protocol.PacketIDLoginPluginRequest:
			if err := protocol.WriteFrame(clientW, frame); err != nil {
				return err
			}
			resp, err := protocol.ReadFrame(client, 0)
			if err != nil {
				return fmt.Errorf("read login plugin response: %w", err)
			}
			if err := protocol.WriteFrame(upstreamW, resp); err != nil {
				return err
			}
		case protocol.PacketIDLoginSuccess:
			if s.version != s.proto.Current {
				success, err := decodeLoginSuccess(body, s.version)
				if err != nil {
					return err
				}
				frame = success.encode()
			}
			return protocol.WriteFrame(clientW, frame)
		default:
			return fmt.Errorf("unexpected login packet 0x%02x", id)
		}
	}
}

func (s *Server) disconnectLogin(w io.Writer, reason string) {
	frame, err := protocol.EncodeLoginDisconnect(reason)
	if err != nil {
		return
	}
	_ = protocol.WriteFrame(w, frame)
}

// parseLoginStart returns the player name of a current login start frame.
// The signature data that follows it is not forwarded to legacy servers.
func parseLoginStart(frame []byte) (string, error) {
	r := protocol.NewReader(frame)
	id, err := r.ReadVarInt()
	if err != nil {
		return "", fmt.Errorf("read packet id: %w", err)
	}
	if id != protocol.PacketIDLoginStart {
		return "", fmt.Errorf("expected login start, got packet 0x%02x", id)
	}
	name, err := r.ReadString()
	if err != nil {
		return "", fmt.Errorf("read player name: %w", err)
	}
	return name, nil
}

func encodeLoginStart(name string) []byte {
	buf := protocol.GetBuffer()
	defer protocol.PutBuffer(buf)
	w := protocol.NewWriter(buf)
	w.WriteVarInt(protocol.PacketIDLoginStart)
	w.WriteString(name)
	return append([]byte(nil), buf.Bytes()...)
}

type loginSuccess struct {
	UUID     uuid.UUID
	Username string
}

// decodeLoginSuccess reads a legacy login success body. Before 1.16 the
// UUID is sent as its hyphenated string form.
func decodeLoginSuccess(body []byte, version int32) (loginSuccess, error) {
	var ls loginSuccess
	r := protocol.NewReader(body)
	if version < protocols.V1_16 {
		text, err := r.ReadString()
		if err != nil {
			return ls, fmt.Errorf("read uuid: %w", err)
		}
		if ls.UUID, err = uuid.Parse(text); err != nil {
			return ls, fmt.Errorf("parse uuid: %w", err)
		}
	} else {
		raw, err := r.Read(16)
		if err != nil {
			return ls, fmt.Errorf("read uuid: %w", err)
		}
		copy(ls.UUID[:], raw)
	}
	name, err := r.ReadString()
	if err != nil {
		return ls, fmt.Errorf("read username: %w", err)
	}
	ls.Username = name
	return ls, nil
}

// encode writes the current login success frame, which carries an empty
// property list.
func (ls loginSuccess) encode() []byte {
	buf := protocol.GetBuffer()
	defer protocol.PutBuffer(buf)
	w := protocol.NewWriter(buf)
	w.WriteVarInt(protocol.PacketIDLoginSuccess)
	w.WriteRaw(ls.UUID[:])
	w.WriteString(ls.Username)
	w.WriteVarInt(0)
	return append([]byte(nil), buf.Bytes()...)
}
