package hpack

// HuffmanMode picks the string representation.
type HuffmanMode uint8

const (
	// HuffmanShorter uses whichever representation is shorter, preferring
	// plain octets on a tie.
	HuffmanShorter HuffmanMode = iota
	// HuffmanAlways Huffman-codes every string.
	HuffmanAlways
	// HuffmanNever emits plain octets only.
	HuffmanNever
)

// IndexMode picks which table lookups and insertions the compressor uses.
type IndexMode uint8

const (
	// IndexAll uses both tables for lookups and indexes every literal.
	IndexAll IndexMode = iota
	// IndexHeader indexes literals into the dynamic table but does not use
	// the static table for lookups.
	IndexHeader
	// IndexStatic uses static-table lookups only and does not index
	// literals; an indexed static reference is still copied into the
	// dynamic table.
	IndexStatic
	// IndexNever emits plain literals with literal names.
	IndexNever
)

// RefSetMode picks the reference-set strategy.
type RefSetMode uint8

const (
	// RefSetShorter speculatively runs both strategies and keeps whichever
	// produced fewer commands.
	RefSetShorter RefSetMode = iota
	// RefSetAlways runs the differencing algorithm against the reference
	// set.
	RefSetAlways
	// RefSetNever empties the reference set at each block and encodes the
	// headers directly.
	RefSetNever
)

// Options configures a Compressor or Decompressor.
type Options struct {
	Huffman   HuffmanMode
	Index     IndexMode
	RefSet    RefSetMode
	TableSize int
}

// DefaultOptions are the options used when none are given: shorter-of-two
// Huffman coding, full indexing, speculative reference-set differencing and
// a 4096-byte table.
func DefaultOptions() Options {
	return Options{
		Huffman:   HuffmanShorter,
		Index:     IndexAll,
		RefSet:    RefSetShorter,
		TableSize: 4096,
	}
}

// Predefined option bundles. The *H variants Huffman-code every string.
var (
	NAIVE    = Options{Huffman: HuffmanNever, Index: IndexNever, RefSet: RefSetNever, TableSize: 4096}
	LINEAR   = Options{Huffman: HuffmanNever, Index: IndexAll, RefSet: RefSetNever, TableSize: 4096}
	STATIC   = Options{Huffman: HuffmanNever, Index: IndexStatic, RefSet: RefSetNever, TableSize: 4096}
	DIFF     = Options{Huffman: HuffmanNever, Index: IndexAll, RefSet: RefSetAlways, TableSize: 4096}
	SHORTER  = Options{Huffman: HuffmanNever, Index: IndexAll, RefSet: RefSetShorter, TableSize: 4096}
	NAIVEH   = Options{Huffman: HuffmanAlways, Index: IndexNever, RefSet: RefSetNever, TableSize: 4096}
	LINEARH  = Options{Huffman: HuffmanAlways, Index: IndexAll, RefSet: RefSetNever, TableSize: 4096}
	STATICH  = Options{Huffman: HuffmanAlways, Index: IndexStatic, RefSet: RefSetNever, TableSize: 4096}
	DIFFH    = Options{Huffman: HuffmanAlways, Index: IndexAll, RefSet: RefSetAlways, TableSize: 4096}
	SHORTERH = Options{Huffman: HuffmanAlways, Index: IndexAll, RefSet: RefSetShorter, TableSize: 4096}
)

// Presets maps bundle names, as accepted in configuration files, to their
// options.
var Presets = map[string]Options{
	"NAIVE":    NAIVE,
	"LINEAR":   LINEAR,
	"STATIC":   STATIC,
	"DIFF":     DIFF,
	"SHORTER":  SHORTER,
	"NAIVEH":   NAIVEH,
	"LINEARH":  LINEARH,
	"STATICH":  STATICH,
	"DIFFH":    DIFFH,
	"SHORTERH": SHORTERH,
}

// lookupDynamic reports whether the mode allows dynamic-table lookups.
func (m IndexMode) lookupDynamic() bool { return m == IndexAll || m == IndexHeader }

// lookupStatic reports whether the mode allows static-table lookups.
func (m IndexMode) lookupStatic() bool { return m == IndexAll || m == IndexStatic }

// indexLiterals reports whether literals are added to the dynamic table.
func (m IndexMode) indexLiterals() bool { return m == IndexAll || m == IndexHeader }
