package protocol

import "io"

// DefaultMaxBuffered bounds how many unconsumed bytes a Buffer will hold.
const DefaultMaxBuffered = 4 * 1024

// Buffer accumulates the bytes received on one connection and yields
// complete frames. It is not safe for concurrent use; one goroutine owns it.
type Buffer struct {
	data []byte
	max  int
}

// NewBuffer returns a buffer capped at max unconsumed bytes (DefaultMaxBuffered if max <= 0).
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxBuffered
	}
	return &Buffer{data: make([]byte, 0, MaxFrameLen), max: max}
}

// Len is the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes exposes the unconsumed bytes. The slice is invalidated by the next Feed or Next.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset drops every buffered byte.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Feed appends p.
func (b *Buffer) Feed(p []byte) error {
	if len(b.data)+len(p) > b.max {
		return ErrBufferOverflow
	}
	b.data = append(b.data, p...)
	return nil
}

// ReadFrom performs a single Read of at most chunk bytes from r and appends the result.
func (b *Buffer) ReadFrom(r io.Reader, chunk int) (int, error) {
	if chunk <= 0 {
		chunk = MaxFrameLen
	}
	room := b.max - len(b.data)
	if room <= 0 {
		return 0, ErrBufferOverflow
	}
	if chunk > room {
		chunk = room
	}
	start := len(b.data)
	if cap(b.data)-start < chunk {
		grown := make([]byte, start, start+chunk)
		copy(grown, b.data)
		b.data = grown
	}
	n, err := r.Read(b.data[start : start+chunk])
	b.data = b.data[:start+n]
	return n, err
}

// Next decodes the frame at the front of the buffer. ok is false with a nil
// error when more bytes are needed. Consumed bytes are compacted away; on
// error nothing is consumed.
func (b *Buffer) Next() (Message, bool, error) {
	n, msg, err := Decode(b.data)
	if err != nil {
		return Message{}, false, err
	}
	if n == 0 {
		return Message{}, false, nil
	}
	rest := copy(b.data, b.data[n:])
	b.data = b.data[:rest]
	return msg, true, nil
}
