package hpack

import (
	"github.com/xkilldash9x/h2wire/buffer"
)

// Decompressor turns header-block fragments back into header lists. It owns
// the decoding direction's context and must see every block the peer's
// compressor produced, in order.
type Decompressor struct {
	ctx  *Context
	opts Options
}

// NewDecompressor returns a decompressor with the given options. Only the
// table size matters for decoding; the rest is accepted so one Options value
// can configure both directions.
func NewDecompressor(opts Options) *Decompressor {
	if opts.TableSize <= 0 {
		opts.TableSize = DefaultOptions().TableSize
	}
	return &Decompressor{ctx: NewContext(opts.TableSize), opts: opts}
}

// Context exposes the decompressor's context for inspection.
func (d *Decompressor) Context() *Context { return d.ctx }

// SetLimit lowers or raises the dynamic-table limit, as a local
// SETTINGS_HEADER_TABLE_SIZE change requires.
func (d *Decompressor) SetLimit(n int) {
	d.ctx.SetLimit(n)
}

// Decode consumes one complete header block from buf and returns the emitted
// headers. Reference-set entries the block did not explicitly emit are
// appended afterwards; they are the headers carried over from the previous
// block.
func (d *Decompressor) Decode(buf *buffer.Buffer) ([]Header, error) {
	d.ctx.Unmark()

	var out []Header
	for !buf.Empty() {
		cmd, err := readCommand(buf)
		if err != nil {
			return nil, err
		}
		h, err := d.ctx.Process(cmd)
		if err != nil {
			return nil, err
		}
		if h != nil {
			out = append(out, *h)
		}
	}

	for _, re := range d.ctx.pendingRefset() {
		if re.mark == MarkEmitted {
			continue
		}
		h, _, err := d.ctx.Dereference(re.index)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// DecodeBytes is Decode over a byte slice.
func (d *Decompressor) DecodeBytes(p []byte) ([]Header, error) {
	return d.Decode(buffer.New(p))
}
