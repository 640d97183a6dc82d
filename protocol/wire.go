package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire errors. Any of these while reading a frame means the byte stream no
// longer matches the expected layout.
var (
	ErrTruncated      = errors.New("protocol: truncated data")
	ErrVarIntTooBig   = errors.New("protocol: varint too big")
	ErrNegativeLength = errors.New("protocol: negative length")
	ErrInvalidBool    = errors.New("protocol: invalid bool value")
	ErrStringTooLong  = errors.New("protocol: string too long")
)

// MaxStringLength is the largest string the wire format allows, in bytes.
const MaxStringLength = 32767 * 4

// Reader is a cursor over one already-buffered frame.
// Slices returned by Read alias the underlying frame.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a cursor positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Read consumes n bytes.
func (r *Reader) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if r.Remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadRest consumes every remaining byte.
func (r *Reader) ReadRest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

func (r *Reader) ReadByte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.Read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.Read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadInt32()
	return math.Float32frombits(uint32(v)), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadInt64()
	return math.Float64frombits(uint64(v)), err
}

// ReadVarInt reads a LEB128-style signed 32-bit integer of at most 5 bytes.
func (r *Reader) ReadVarInt() (int32, error) {
	var value uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(value), nil
		}
	}
	return 0, ErrVarIntTooBig
}

// ReadVarLong reads a LEB128-style signed 64-bit integer of at most 10 bytes.
func (r *Reader) ReadVarLong() (int64, error) {
	var value uint64
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int64(value), nil
		}
	}
	return 0, ErrVarIntTooBig
}

// ReadLength reads a VarInt used as a count and rejects negative values.
func (r *Reader) ReadLength() (int, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNegativeLength
	}
	return int(n), nil
}

// ReadBytes reads a VarInt length prefixed byte run. The result is a copy.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	b, err := r.Read(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// ReadString reads a VarInt length prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	b, err := r.Read(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer is the encode sink for one frame.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter wraps buf. Writes to a bytes.Buffer cannot fail, so Writer
// methods return nothing.
func NewWriter(buf *bytes.Buffer) *Writer {
	return &Writer{buf: buf}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) WriteRaw(b []byte) {
	w.buf.Write(b)
}

func (w *Writer) WriteUint8(b byte) {
	w.buf.WriteByte(b)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteInt8(v int8) {
	w.buf.WriteByte(byte(v))
}

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteInt32(int32(math.Float32bits(v)))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteInt64(int64(math.Float64bits(v)))
}

func (w *Writer) WriteVarInt(v int32) {
	var b [5]byte
	w.buf.Write(AppendVarInt(b[:0], v))
}

func (w *Writer) WriteVarLong(v int64) {
	u := uint64(v)
	for {
		if u&^0x7f == 0 {
			w.buf.WriteByte(byte(u))
			return
		}
		w.buf.WriteByte(byte(u&0x7f) | 0x80)
		u >>= 7
	}
}

// WriteBytes writes a VarInt length prefixed byte run.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarInt(int32(len(b)))
	w.buf.Write(b)
}

// WriteString writes a VarInt length prefixed string.
func (w *Writer) WriteString(s string) {
	w.WriteVarInt(int32(len(s)))
	w.buf.WriteString(s)
}

// AppendVarInt appends the VarInt encoding of v to b.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for {
		if u&^0x7f == 0 {
			return append(b, byte(u))
		}
		b = append(b, byte(u&0x7f)|0x80)
		u >>= 7
	}
}

// VarIntSize returns the number of bytes the VarInt encoding of v occupies.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}
