package hpack

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/h2wire"
)

func TestHuffmanEncodeVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"www.example.com", "f1e3c2e5f23a6ba0ab90f4ff"},
		{"no-cache", "a8eb10649cbf"},
		{"private", "aec3771a4b"},
		{"302", "6402"},
		{"https://www.example.com", "9d29ad171863c78f0b97c8e9ae82ae43d3"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, hex.EncodeToString(HuffmanEncode(c.in)), "encoding %q", c.in)
		assert.Equal(t, len(c.want)/2, HuffmanEncodedLen(c.in))

		got, err := HuffmanDecode(HuffmanEncode(c.in))
		require.NoError(t, err)
		assert.Equal(t, c.in, got)
	}
}

func TestHuffmanRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"www.example.com",
		"Mon, 21 Oct 2013 20:13:21 GMT",
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~",
	}
	// Every octet value, including the ones with 28- and 30-bit codes.
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	inputs = append(inputs, string(all))

	for _, in := range inputs {
		got, err := HuffmanDecode(HuffmanEncode(in))
		require.NoError(t, err)
		require.Equal(t, in, got)
	}
}

func TestHuffmanDecodeRejectsBadPadding(t *testing.T) {
	// 'a' is 00011 over five bits; the valid padded octet is 0x1f.
	got, err := HuffmanDecode([]byte{0x1f})
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	// Same code padded with zeros instead of ones.
	_, err = HuffmanDecode([]byte{0x18})
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
	assert.Contains(t, err.Error(), "EOS invalid")
}

func TestHuffmanDecodeRejectsOverlongPadding(t *testing.T) {
	// Eight or more 1-bits of padding walk down the EOS code.
	for _, in := range [][]byte{{0xff}, {0xff, 0xff}, {0x1f, 0xff}} {
		_, err := HuffmanDecode(in)
		require.Error(t, err, "input %x", in)
		assert.Contains(t, err.Error(), "EOS found", "input %x", in)
	}
}

func TestHuffmanDecodeTruncatedCode(t *testing.T) {
	// A multi-octet code cut mid-way: the first three octets of the 12-octet
	// www.example.com ciphertext end inside the code for '.' with non-1
	// residue.
	_, err := HuffmanDecode([]byte{0xf1, 0xe3, 0xc2})
	require.Error(t, err)
}
