package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	b := New(nil)
	b.WriteString("head")
	b.WriteUint32(0xdeadbeef)
	b.WriteUint16(0x0102)
	require.NoError(t, b.WriteByte(0x7f))

	p, err := b.Read(4)
	require.NoError(t, err)
	assert.Equal(t, "head", string(p))

	v32, err := b.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	v16, err := b.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	c, err := b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), c)
	assert.True(t, b.Empty())
}

func TestShortReadDoesNotConsume(t *testing.T) {
	b := New([]byte{1, 2, 3})

	_, err := b.Read(4)
	require.ErrorIs(t, err, ErrShort)
	assert.Equal(t, 3, b.Len(), "a failed read must not advance the cursor")

	_, err = b.ReadUint32()
	require.ErrorIs(t, err, ErrShort)
	assert.Equal(t, 3, b.Len())
}

func TestPeekAndSlice(t *testing.T) {
	b := New([]byte{0, 1, 2, 3, 4, 5})
	b.Discard(1)

	p, err := b.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, p)
	assert.Equal(t, 5, b.Len(), "peek must not advance")

	s, err := b.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, s)

	_, err = b.Slice(4, 3)
	require.ErrorIs(t, err, ErrShort)
}

func TestPrepend(t *testing.T) {
	b := New([]byte{9, 9, 1, 2})
	b.Discard(2)

	// Fits into the consumed prefix.
	b.Prepend([]byte{7})
	assert.Equal(t, []byte{7, 1, 2}, b.Bytes())

	// Larger than the consumed prefix forces a reallocation.
	b.Prepend([]byte{3, 4, 5, 6})
	assert.Equal(t, []byte{3, 4, 5, 6, 7, 1, 2}, b.Bytes())
}

func TestCompactRetainsUnread(t *testing.T) {
	b := New(nil)
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}
	b.Write(payload)
	b.Discard(9000)
	// Write compacts the consumed prefix before appending.
	b.Write(nil)

	assert.Equal(t, 1000, b.Len())
	p, err := b.Read(1000)
	require.NoError(t, err)
	for i, c := range p {
		require.Equal(t, byte(9000+i), c)
	}
}
