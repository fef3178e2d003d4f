// Package hpack implements the HPACK header codec: the static Huffman code
// for string literals, the shared compression context (dynamic header table
// plus reference set), and the compressor/decompressor that turn header
// lists into header-block fragments and back.
//
// The compressor and decompressor are thin wrappers over the same Context
// type; both directions of a connection own one context each, and the
// context is where encoder and decoder must stay bit-for-bit synchronized.
package hpack

import "strings"

// Header is one (name, value) pair. Names and values are raw octet
// sequences; names are lowercased before encoding.
type Header struct {
	Name  string
	Value string
}

// Size is the cost the entry contributes to the dynamic table: the two
// string lengths plus a 32-byte overhead estimate.
func (h Header) Size() int {
	return len(h.Name) + len(h.Value) + 32
}

// normalized returns the header with its name lowercased, as the wire
// representation requires for literal names.
func (h Header) normalized() Header {
	return Header{Name: strings.ToLower(h.Name), Value: h.Value}
}

// Mark is the per-block annotation the codecs attach to reference-set
// entries while processing one header block.
type Mark uint8

const (
	// MarkNone is the reset state at the start of each block.
	MarkNone Mark = iota
	// MarkEmitted records that the entry's header was explicitly emitted
	// inside the current block.
	MarkEmitted
	// MarkCommon records a header whose emission the encoder deferred to the
	// decoder's implicit end-of-block pass.
	MarkCommon
)

func (m Mark) String() string {
	switch m {
	case MarkNone:
		return "none"
	case MarkEmitted:
		return "emitted"
	case MarkCommon:
		return "common"
	}
	return "invalid"
}
