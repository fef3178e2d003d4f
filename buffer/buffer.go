// Package buffer provides the growable byte sequence the frame and HPACK
// codecs read from and write to. It is a cursor over a mutable byte slice
// with big-endian integer helpers; all multi-byte integers on the wire are
// big-endian.
package buffer

import "encoding/binary"

// ErrShort is returned when a read asks for more bytes than the buffer holds.
var ErrShort = errShort{}

type errShort struct{}

func (errShort) Error() string { return "buffer: short read" }

// Buffer is a byte sequence with a read cursor. Writes append at the tail;
// reads consume from the head. The zero value is ready to use.
type Buffer struct {
	data []byte
	off  int
}

// New returns a buffer seeded with b. The buffer takes ownership of b.
func New(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Len reports the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) - b.off }

// Empty reports whether no unread bytes remain.
func (b *Buffer) Empty() bool { return b.Len() == 0 }

// Bytes returns the unread portion. The slice aliases the buffer's storage
// and is valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data[b.off:] }

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.compact()
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.data = append(b.data, c)
	return nil
}

// WriteString appends the raw octets of s.
func (b *Buffer) WriteString(s string) {
	b.data = append(b.data, s...)
}

// WriteUint16 appends v big-endian.
func (b *Buffer) WriteUint16(v uint16) {
	b.data = binary.BigEndian.AppendUint16(b.data, v)
}

// WriteUint32 appends v big-endian.
func (b *Buffer) WriteUint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

// Read consumes and returns the next n bytes. It fails with ErrShort, and
// consumes nothing, when fewer than n bytes are buffered. The returned slice
// aliases the buffer's storage.
func (b *Buffer) Read(n int) ([]byte, error) {
	if n < 0 || b.Len() < n {
		return nil, ErrShort
	}
	p := b.data[b.off : b.off+n]
	b.off += n
	return p, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if n < 0 || b.Len() < n {
		return nil, ErrShort
	}
	return b.data[b.off : b.off+n], nil
}

// ReadByte consumes and returns one byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrShort
	}
	c := b.data[b.off]
	b.off++
	return c, nil
}

// ReadUint16 consumes two bytes and decodes them big-endian.
func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

// ReadUint32 consumes four bytes and decodes them big-endian.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

// Discard drops the next n unread bytes, or everything when fewer remain.
func (b *Buffer) Discard(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.off += n
}

// Prepend inserts p ahead of the unread bytes so it is read next.
func (b *Buffer) Prepend(p []byte) {
	if b.off >= len(p) {
		// Reuse the already-consumed prefix.
		b.off -= len(p)
		copy(b.data[b.off:], p)
		return
	}
	next := make([]byte, 0, len(p)+b.Len())
	next = append(next, p...)
	next = append(next, b.data[b.off:]...)
	b.data = next
	b.off = 0
}

// Slice returns n unread bytes starting at offset off from the cursor,
// without advancing it.
func (b *Buffer) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || b.Len() < off+n {
		return nil, ErrShort
	}
	return b.data[b.off+off : b.off+off+n], nil
}

// compact drops the consumed prefix once it dominates the backing array, so
// long-lived connection buffers do not grow without bound. Only called from
// Write: a mutation already invalidates slices handed out by Read/Peek.
func (b *Buffer) compact() {
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
		return
	}
	if b.off > 4096 && b.off > len(b.data)/2 {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
}
