package hpack

import (
	"fmt"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/buffer"
)

// CmdType enumerates the header-block representations.
type CmdType uint8

const (
	// CmdIndexed toggles a table entry in or out of the reference set.
	CmdIndexed CmdType = iota
	// CmdIncremental is a literal that is added to the dynamic table.
	CmdIncremental
	// CmdNoIndex is a literal that leaves the table untouched.
	CmdNoIndex
	// CmdNeverIndexed is CmdNoIndex with a ban on downstream re-indexing.
	CmdNeverIndexed
	// CmdChangeTableSize lowers or raises the dynamic table limit.
	CmdChangeTableSize
	// CmdRefSetEmpty clears the reference set.
	CmdRefSetEmpty
)

func (t CmdType) String() string {
	switch t {
	case CmdIndexed:
		return "indexed"
	case CmdIncremental:
		return "incremental"
	case CmdNoIndex:
		return "noindex"
	case CmdNeverIndexed:
		return "neverindexed"
	case CmdChangeTableSize:
		return "changetablesize"
	case CmdRefSetEmpty:
		return "refsetempty"
	}
	return "invalid"
}

// Command is one parsed representation. Index is the zero-based table index
// for CmdIndexed, or the zero-based name index for literals (-1 when the
// name is spelled out in Name). Size carries the new limit for
// CmdChangeTableSize. On the wire indices are one-based; zero there means
// "literal name follows".
type Command struct {
	Type  CmdType
	Index int
	Name  string
	Value string
	Size  int
}

// Wire first-octet patterns, per representation:
//
//	indexed          1xxxxxxx  (7-bit prefix)
//	incremental      01xxxxxx  (6-bit prefix)
//	noindex          0000xxxx  (4-bit prefix)
//	neverindexed     0001xxxx  (4-bit prefix)
//	changetablesize  0010xxxx  (4-bit prefix)
//	refsetempty      00110000  (fixed octet)
const (
	patIndexed         = 0x80
	patIncremental     = 0x40
	patNeverIndexed    = 0x10
	patChangeTableSize = 0x20
	patRefSetEmpty     = 0x30
)

// appendString appends the string representation of s: a 7-bit-prefix length
// whose top bit flags Huffman coding, then the octets.
func appendString(dst []byte, s string, mode HuffmanMode) []byte {
	huffman := false
	switch mode {
	case HuffmanAlways:
		huffman = true
	case HuffmanShorter:
		// Plain wins ties.
		huffman = HuffmanEncodedLen(s) < len(s)
	}
	if huffman {
		enc := HuffmanEncode(s)
		dst = appendInteger(dst, uint64(len(enc)), 7, 0x80)
		return append(dst, enc...)
	}
	dst = appendInteger(dst, uint64(len(s)), 7, 0)
	return append(dst, s...)
}

// readString decodes one string representation from the head of buf.
func readString(buf *buffer.Buffer) (string, error) {
	first, err := buf.Peek(1)
	if err != nil {
		return "", h2wire.NewCompressionError("string truncated")
	}
	huffman := first[0]&0x80 != 0
	n, err := DecodeInteger(buf, 7)
	if err != nil {
		return "", err
	}
	if n > uint64(buf.Len()) {
		return "", h2wire.NewCompressionError("too short")
	}
	p, err := buf.Read(int(n))
	if err != nil {
		return "", h2wire.NewCompressionError("too short")
	}
	if huffman {
		return HuffmanDecode(p)
	}
	return string(p), nil
}

// appendCommand serializes cmd onto dst.
func appendCommand(dst []byte, cmd Command, mode HuffmanMode) ([]byte, error) {
	switch cmd.Type {
	case CmdIndexed:
		return appendInteger(dst, uint64(cmd.Index)+1, 7, patIndexed), nil
	case CmdIncremental, CmdNoIndex, CmdNeverIndexed:
		var mask byte
		var prefix uint
		switch cmd.Type {
		case CmdIncremental:
			mask, prefix = patIncremental, 6
		case CmdNoIndex:
			mask, prefix = 0x00, 4
		case CmdNeverIndexed:
			mask, prefix = patNeverIndexed, 4
		}
		if cmd.Index >= 0 {
			dst = appendInteger(dst, uint64(cmd.Index)+1, prefix, mask)
		} else {
			dst = appendInteger(dst, 0, prefix, mask)
			dst = appendString(dst, cmd.Name, mode)
		}
		return appendString(dst, cmd.Value, mode), nil
	case CmdChangeTableSize:
		return appendInteger(dst, uint64(cmd.Size), 4, patChangeTableSize), nil
	case CmdRefSetEmpty:
		return append(dst, patRefSetEmpty), nil
	}
	return nil, h2wire.NewCompressionError("unknown representation %d", cmd.Type)
}

// readCommand parses the next representation from the head of buf.
func readCommand(buf *buffer.Buffer) (Command, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return Command{}, h2wire.NewCompressionError("representation truncated")
	}

	switch {
	case b&patIndexed != 0:
		idx, err := readInteger(buf, b, 7)
		if err != nil {
			return Command{}, err
		}
		if idx == 0 {
			return Command{}, h2wire.NewCompressionError("indexed representation index 0")
		}
		return Command{Type: CmdIndexed, Index: int(idx) - 1}, nil

	case b&patIncremental != 0:
		return readLiteral(buf, b, CmdIncremental, 6)

	case b == patRefSetEmpty:
		return Command{Type: CmdRefSetEmpty}, nil

	case b&0xf0 == patChangeTableSize:
		size, err := readInteger(buf, b, 4)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: CmdChangeTableSize, Size: int(size)}, nil

	case b&0xf0 == 0x00:
		return readLiteral(buf, b, CmdNoIndex, 4)

	case b&0xf0 == patNeverIndexed:
		return readLiteral(buf, b, CmdNeverIndexed, 4)

	default:
		return Command{}, h2wire.NewCompressionError("unknown representation octet %#02x", b)
	}
}

func readLiteral(buf *buffer.Buffer, first byte, t CmdType, prefix uint) (Command, error) {
	idx, err := readInteger(buf, first, prefix)
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Type: t, Index: int(idx) - 1}
	if idx == 0 {
		name, err := readString(buf)
		if err != nil {
			return Command{}, err
		}
		cmd.Name = name
	}
	value, err := readString(buf)
	if err != nil {
		return Command{}, err
	}
	cmd.Value = value
	return cmd, nil
}

func (c Command) String() string {
	switch c.Type {
	case CmdIndexed:
		return fmt.Sprintf("indexed(%d)", c.Index)
	case CmdChangeTableSize:
		return fmt.Sprintf("changetablesize(%d)", c.Size)
	case CmdRefSetEmpty:
		return "refsetempty"
	default:
		if c.Index >= 0 {
			return fmt.Sprintf("%s(#%d=%q)", c.Type, c.Index, c.Value)
		}
		return fmt.Sprintf("%s(%q=%q)", c.Type, c.Name, c.Value)
	}
}
