package hpack

import (
	"sync"

	"github.com/xkilldash9x/h2wire"
)

// HuffmanEncode returns the Huffman coding of s. Code bits accumulate
// MSB-first; the final partial octet is padded with 1-bits to the byte
// boundary.
func HuffmanEncode(s string) []byte {
	out := make([]byte, 0, len(s)*3/4+1)
	var acc uint64
	var nbits uint
	for i := 0; i < len(s); i++ {
		hc := huffmanCodes[s[i]]
		acc = acc<<hc.bits | uint64(hc.code)
		nbits += uint(hc.bits)
		for nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
		}
	}
	if nbits > 0 {
		// Pad with the most significant bits of EOS, which are all ones.
		out = append(out, byte(acc<<(8-nbits))|byte(0xff>>nbits))
	}
	return out
}

// HuffmanEncodedLen reports the octet count HuffmanEncode would produce,
// without allocating. The shorter-of-two string strategy uses it.
func HuffmanEncodedLen(s string) int {
	var bits int
	for i := 0; i < len(s); i++ {
		bits += int(huffmanCodes[s[i]].bits)
	}
	return (bits + 7) / 8
}

// The decoder is a table-driven DFA consuming one nibble per step. Each
// state is an interior node of the code tree; a transition records the
// octets completed while walking four bits, the landing state, and whether
// the walk ran into the EOS code.
type huffmanTransition struct {
	next   uint16
	sym    byte
	hasSym bool
	eos    bool
}

type huffmanState struct {
	trans [16]huffmanTransition
	// accepting marks states that are legal end-of-input positions: the
	// root, or a node whose prefix is fewer than eight 1-bits (padding).
	accepting bool
	// onesPath marks nodes lying on the all-ones path toward EOS; reaching
	// the end of input deep on that path means the padding ran long.
	onesPath bool
}

var (
	huffmanOnce sync.Once
	huffmanDFA  []huffmanState
)

type huffmanNode struct {
	children [2]*huffmanNode
	sym      int // -1 for interior nodes
	state    uint16
	depth    int
	onesPath bool
}

func buildHuffmanDFA() {
	root := &huffmanNode{sym: -1}
	for sym, hc := range huffmanCodes {
		n := root
		for i := int(hc.bits) - 1; i >= 0; i-- {
			bit := (hc.code >> uint(i)) & 1
			child := n.children[bit]
			if child == nil {
				child = &huffmanNode{sym: -1, depth: n.depth + 1}
				child.onesPath = bit == 1 && (n == root || n.onesPath)
				n.children[bit] = child
			}
			n = child
		}
		n.sym = sym
	}

	// Number the interior nodes; they are the DFA states.
	var interior []*huffmanNode
	var number func(n *huffmanNode)
	number = func(n *huffmanNode) {
		if n == nil || n.sym >= 0 {
			return
		}
		n.state = uint16(len(interior))
		interior = append(interior, n)
		number(n.children[0])
		number(n.children[1])
	}
	number(root)

	huffmanDFA = make([]huffmanState, len(interior))
	for _, n := range interior {
		st := &huffmanDFA[n.state]
		st.accepting = n == root || (n.onesPath && n.depth < 8)
		st.onesPath = n != root && n.onesPath
		for nib := 0; nib < 16; nib++ {
			cur := n
			var tr huffmanTransition
			for shift := 3; shift >= 0; shift-- {
				bit := (nib >> shift) & 1
				cur = cur.children[bit]
				if cur.sym >= 0 {
					if cur.sym == eosSymbol {
						tr.eos = true
						break
					}
					// The code is complete: at most one octet can finish per
					// nibble since every code is longer than four bits.
					tr.sym = byte(cur.sym)
					tr.hasSym = true
					cur = root
				}
			}
			if !tr.eos {
				tr.next = cur.state
			}
			st.trans[nib] = tr
		}
	}
}

// HuffmanDecode expands a Huffman-coded string literal. It fails with
// "EOS found" when the ciphertext walks into the EOS code or carries more
// than seven bits of 1-padding, and with "EOS invalid" when the trailing
// padding is not all ones.
func HuffmanDecode(p []byte) (string, error) {
	huffmanOnce.Do(buildHuffmanDFA)

	out := make([]byte, 0, len(p)*2)
	var state uint16
	for _, b := range p {
		for _, nib := range [2]byte{b >> 4, b & 0x0f} {
			tr := huffmanDFA[state].trans[nib]
			if tr.eos {
				return "", h2wire.NewCompressionError("EOS found")
			}
			if tr.hasSym {
				out = append(out, tr.sym)
			}
			state = tr.next
		}
	}
	if !huffmanDFA[state].accepting {
		if huffmanDFA[state].onesPath {
			return "", h2wire.NewCompressionError("EOS found")
		}
		return "", h2wire.NewCompressionError("EOS invalid")
	}
	return string(out), nil
}
