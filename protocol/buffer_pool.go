package protocol

import (
	"bytes"
	"io"
	"sync"
)

// Buffer size constants for frame encoding
const (
	SmallBufferSize  = 256         // For keep-alives, small notifications
	MediumBufferSize = 4096        // For typical frames
	CopyBufferSize   = 512 * 1024  // 512KB for verbatim relay
	MaxPooledBuffer  = 1024 * 1024 // 1MB - don't pool larger buffers
)

// bufferPool is a sync.Pool for reusing byte buffers to reduce allocations
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// copyBufferPool is a sync.Pool for reusing copy buffers
var copyBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, CopyBufferSize)
		return &buf
	},
}

// GetBuffer retrieves a buffer from the pool.
// The buffer is reset and ready for use.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool.
// Buffers larger than MaxPooledBuffer are not pooled to prevent memory bloat.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > MaxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// GetBufferWithSize retrieves a buffer from the pool and grows it to the specified size hint.
func GetBufferWithSize(sizeHint int) *bytes.Buffer {
	buf := GetBuffer()
	if sizeHint > 0 && buf.Cap() < sizeHint {
		buf.Grow(sizeHint)
	}
	return buf
}

// CopyBuffered copies from src to dst using a pooled 512KB buffer.
func CopyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	bufPtr := copyBufferPool.Get().(*[]byte)
	defer copyBufferPool.Put(bufPtr)
	return io.CopyBuffer(dst, src, *bufPtr)
}

// Relay performs bidirectional verbatim copy between two io.ReadWriter.
// It returns when either direction closes. Used for connections that never
// reach the play phase (status pings).
func Relay(a, b io.ReadWriter) error {
	errCh := make(chan error, 2)

	go func() {
		_, err := CopyBuffered(a, b)
		errCh <- err
	}()

	go func() {
		_, err := CopyBuffered(b, a)
		errCh <- err
	}()

	return <-errCh
}
