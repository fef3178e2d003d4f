package hpack

import (
	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/buffer"
)

// appendInteger appends the prefix-integer representation of i to dst. The
// low prefix bits of the first octet carry the value (or the all-ones
// escape); mask supplies the representation's pattern bits above the prefix.
// A prefix of zero means the first octet is omitted entirely and the value
// is carried purely by continuation octets.
func appendInteger(dst []byte, i uint64, prefix uint, mask byte) []byte {
	if prefix > 0 {
		limit := uint64(1)<<prefix - 1
		if i < limit {
			return append(dst, mask|byte(i))
		}
		dst = append(dst, mask|byte(limit))
		i -= limit
	}
	for i >= 128 {
		dst = append(dst, byte(i%128)|0x80)
		i /= 128
	}
	return append(dst, byte(i))
}

// EncodeInteger returns the prefix-integer representation of i with the
// given prefix width (0 through 8).
func EncodeInteger(i uint64, prefix uint) []byte {
	return appendInteger(nil, i, prefix, 0)
}

// readInteger decodes a prefix integer whose first octet (when prefix > 0)
// has already been consumed and is passed in first.
func readInteger(buf *buffer.Buffer, first byte, prefix uint) (uint64, error) {
	var i uint64
	if prefix > 0 {
		limit := uint64(1)<<prefix - 1
		i = uint64(first) & limit
		if i < limit {
			return i, nil
		}
	}
	var shift uint
	for {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, h2wire.NewCompressionError("integer truncated")
		}
		i += uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return i, nil
		}
		shift += 7
		if shift > 63 {
			return 0, h2wire.NewCompressionError("integer overflow")
		}
	}
}

// DecodeInteger decodes a prefix integer from the head of buf.
func DecodeInteger(buf *buffer.Buffer, prefix uint) (uint64, error) {
	var first byte
	if prefix > 0 {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, h2wire.NewCompressionError("integer truncated")
		}
		first = b
	}
	return readInteger(buf, first, prefix)
}
