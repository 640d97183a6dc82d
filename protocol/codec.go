package protocol

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire format: [VarInt length][VarInt packet id][body]

// MaxFrameSize is the largest frame length a 3 byte VarInt prefix can carry.
const MaxFrameSize = 2097151

var (
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	ErrEmptyFrame    = errors.New("protocol: empty frame")
)

// FrameReader is satisfied by *bufio.Reader.
type FrameReader interface {
	io.Reader
	io.ByteReader
}

// ReadFrame reads one length-delimited frame. The returned slice holds the
// packet id followed by the body.
func ReadFrame(r FrameReader, maxSize int) ([]byte, error) {
	if maxSize <= 0 || maxSize > MaxFrameSize {
		maxSize = MaxFrameSize
	}

	var length uint32
	for i := 0; ; i++ {
		if i == 3 {
			return nil, ErrVarIntTooBig
		}
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		length |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			break
		}
	}

	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if int(length) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

// WriteFrame writes frame with its length prefix in a single Write call.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	buf := GetBufferWithSize(len(frame) + 3)
	defer PutBuffer(buf)

	var prefix [5]byte
	buf.Write(AppendVarInt(prefix[:0], int32(len(frame))))
	buf.Write(frame)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// SplitPacketID returns the packet id of frame and the body that follows it.
func SplitPacketID(frame []byte) (int32, []byte, error) {
	r := NewReader(frame)
	id, err := r.ReadVarInt()
	if err != nil {
		return 0, nil, fmt.Errorf("read packet id: %w", err)
	}
	return id, r.ReadRest(), nil
}

// WithPacketID returns a new frame made of id followed by body.
func WithPacketID(id int32, body []byte) []byte {
	frame := make([]byte, 0, VarIntSize(id)+len(body))
	frame = AppendVarInt(frame, id)
	return append(frame, body...)
}
