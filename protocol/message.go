package protocol

import "fmt"

// Connection states announced by the handshake.
const (
	StateStatus = 1
	StateLogin  = 2
)

// Packet ids that are stable across every supported protocol version.
const (
	PacketIDHandshake = 0x00

	// serverbound, login state
	PacketIDLoginStart          = 0x00
	PacketIDLoginPluginResponse = 0x02

	// clientbound, login state
	PacketIDLoginDisconnect    = 0x00
	PacketIDEncryptionRequest  = 0x01
	PacketIDLoginSuccess       = 0x02
	PacketIDSetCompression     = 0x03
	PacketIDLoginPluginRequest = 0x04
)

// Handshake is the first frame a client sends.
type Handshake struct {
	ProtocolVersion int32
	ServerAddr      string
	ServerPort      uint16
	NextState       int32
}

// ParseHandshake decodes a handshake frame including its packet id.
func ParseHandshake(frame []byte) (*Handshake, error) {
	r := NewReader(frame)
	id, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("read packet id: %w", err)
	}
	if id != PacketIDHandshake {
		return nil, fmt.Errorf("unexpected packet id: got 0x%02x, expected 0x%02x", id, PacketIDHandshake)
	}

	h := &Handshake{}
	if h.ProtocolVersion, err = r.ReadVarInt(); err != nil {
		return nil, fmt.Errorf("read protocol version: %w", err)
	}
	if h.ServerAddr, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("read server address: %w", err)
	}
	if h.ServerPort, err = r.ReadUint16(); err != nil {
		return nil, fmt.Errorf("read server port: %w", err)
	}
	if h.NextState, err = r.ReadVarInt(); err != nil {
		return nil, fmt.Errorf("read next state: %w", err)
	}
	return h, nil
}

// Encode returns the handshake frame including its packet id.
func (h *Handshake) Encode() []byte {
	buf := GetBufferWithSize(SmallBufferSize)
	defer PutBuffer(buf)

	w := NewWriter(buf)
	w.WriteVarInt(PacketIDHandshake)
	w.WriteVarInt(h.ProtocolVersion)
	w.WriteString(h.ServerAddr)
	w.WriteUint16(h.ServerPort)
	w.WriteVarInt(h.NextState)

	return append([]byte(nil), buf.Bytes()...)
}

// EncodeLoginDisconnect builds a login-state disconnect frame carrying reason
// as a plain chat component.
func EncodeLoginDisconnect(reason string) ([]byte, error) {
	return EncodeDisconnect(PacketIDLoginDisconnect, reason)
}

// EncodeDisconnect builds a disconnect frame with packet id id. The play
// state id depends on the protocol version.
func EncodeDisconnect(id int32, reason string) ([]byte, error) {
	text, err := json.Marshal(map[string]string{"text": reason})
	if err != nil {
		return nil, fmt.Errorf("marshal reason: %w", err)
	}

	buf := GetBufferWithSize(len(text) + 8)
	defer PutBuffer(buf)

	w := NewWriter(buf)
	w.WriteVarInt(id)
	w.WriteString(string(text))

	return append([]byte(nil), buf.Bytes()...), nil
}
