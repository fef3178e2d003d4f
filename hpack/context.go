package hpack

import (
	"github.com/xkilldash9x/h2wire"
)

// refEntry is one reference-set member: a zero-based dynamic-table index and
// the per-block mark the codecs maintain on it.
type refEntry struct {
	index int
	mark  Mark
}

// Context is the state the compressor and decompressor share: the dynamic
// header table, the reference set, and the size limit. Index zero is the
// most recently inserted entry; the static table is addressed immediately
// after the dynamic entries. All indices shift together whenever the table
// grows or shrinks.
type Context struct {
	table  []Header
	refset []*refEntry
	size   int
	limit  int
}

// NewContext returns a context with the given dynamic-table limit in bytes.
func NewContext(limit int) *Context {
	return &Context{limit: limit}
}

// Dup returns an independent copy for speculative encoding: the table slots
// are copied shallowly (entries are immutable values) and the reference set
// deeply, since marks are mutated in place.
func (c *Context) Dup() *Context {
	d := &Context{
		table: append([]Header(nil), c.table...),
		size:  c.size,
		limit: c.limit,
	}
	d.refset = make([]*refEntry, len(c.refset))
	for i, re := range c.refset {
		cp := *re
		d.refset[i] = &cp
	}
	return d
}

// Len reports the number of dynamic-table entries.
func (c *Context) Len() int { return len(c.table) }

// Size reports the cumulative cost of the dynamic table.
func (c *Context) Size() int { return c.size }

// Limit reports the current dynamic-table limit.
func (c *Context) Limit() int { return c.limit }

// Dereference resolves a zero-based index against the dynamic table and then
// the static table. isStatic reports which table held the entry.
func (c *Context) Dereference(index int) (h Header, isStatic bool, err error) {
	if index >= 0 && index < len(c.table) {
		return c.table[index], false, nil
	}
	s := index - len(c.table)
	if s >= 0 && s < len(staticTable) {
		return staticTable[s], true, nil
	}
	return Header{}, false, h2wire.NewCompressionError("Index too large")
}

// findRef returns the reference-set entry holding index, or nil.
func (c *Context) findRef(index int) *refEntry {
	for _, re := range c.refset {
		if re.index == index {
			return re
		}
	}
	return nil
}

// findRefByHeader returns the reference-set entry whose table entry equals h.
func (c *Context) findRefByHeader(h Header) *refEntry {
	for _, re := range c.refset {
		if re.index < len(c.table) && c.table[re.index] == h {
			return re
		}
	}
	return nil
}

func (c *Context) removeRef(target *refEntry) {
	for i, re := range c.refset {
		if re == target {
			c.refset = append(c.refset[:i], c.refset[i+1:]...)
			return
		}
	}
}

// Unmark resets every reference-set mark, as both codecs do at the start of
// each header block.
func (c *Context) Unmark() {
	for _, re := range c.refset {
		re.mark = MarkNone
	}
}

// EvictionPreview returns the marks and indices of the reference-set entries
// that adding an entry of the given cost would evict. The encoder uses it to
// recover deferred emissions before they are destroyed.
func (c *Context) EvictionPreview(cost int) []refEntry {
	var out []refEntry
	if cost > c.limit {
		for _, re := range c.refset {
			out = append(out, *re)
		}
		return out
	}
	size := c.size
	doomed := len(c.table)
	for size+cost > c.limit && doomed > 0 {
		doomed--
		size -= c.table[doomed].Size()
	}
	for _, re := range c.refset {
		if re.index >= doomed {
			out = append(out, *re)
		}
	}
	return out
}

// add prepends h to the dynamic table, evicting tail entries until it fits.
// When the entry alone exceeds the limit the whole table is cleared and the
// entry is not added; ok is false in that case. Reference-set entries whose
// slots are evicted are dropped; surviving indices shift right by one.
func (c *Context) add(h Header) (index int, ok bool) {
	cost := h.Size()
	if cost > c.limit {
		c.table = nil
		c.size = 0
		c.refset = nil
		return 0, false
	}
	c.evict(cost)
	c.table = append([]Header{h}, c.table...)
	c.size += cost
	for _, re := range c.refset {
		re.index++
	}
	return 0, true
}

// evict drops tail entries until an additional cost fits under the limit.
func (c *Context) evict(extra int) {
	for c.size+extra > c.limit && len(c.table) > 0 {
		last := len(c.table) - 1
		c.size -= c.table[last].Size()
		c.table = c.table[:last]
		kept := c.refset[:0]
		for _, re := range c.refset {
			if re.index < last {
				kept = append(kept, re)
			}
		}
		c.refset = kept
	}
}

// SetLimit changes the dynamic-table limit and evicts to fit.
func (c *Context) SetLimit(n int) {
	c.limit = n
	c.evict(0)
}

// Process applies one representation to the context and returns the header
// it emits, if any. It is the single state-update path both the compressor
// and the decompressor run every command through, which is what keeps the
// two sides synchronized.
func (c *Context) Process(cmd Command) (*Header, error) {
	switch cmd.Type {
	case CmdRefSetEmpty:
		c.refset = nil
		return nil, nil

	case CmdChangeTableSize:
		c.SetLimit(cmd.Size)
		return nil, nil

	case CmdIndexed:
		if re := c.findRef(cmd.Index); re != nil {
			// Toggle off: the entry leaves the reference set, nothing is
			// emitted.
			c.removeRef(re)
			return nil, nil
		}
		h, isStatic, err := c.Dereference(cmd.Index)
		if err != nil {
			return nil, err
		}
		if isStatic {
			// Static entries are copied into the dynamic table on use; the
			// reference set only ever points at dynamic slots.
			if idx, ok := c.add(h); ok {
				c.refset = append(c.refset, &refEntry{index: idx, mark: MarkEmitted})
			}
		} else {
			c.refset = append(c.refset, &refEntry{index: cmd.Index, mark: MarkEmitted})
		}
		return &h, nil

	case CmdIncremental:
		h, err := c.resolveLiteral(cmd)
		if err != nil {
			return nil, err
		}
		if idx, ok := c.add(h); ok {
			c.refset = append(c.refset, &refEntry{index: idx, mark: MarkEmitted})
		}
		return &h, nil

	case CmdNoIndex, CmdNeverIndexed:
		h, err := c.resolveLiteral(cmd)
		if err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, h2wire.NewCompressionError("unknown representation %d", cmd.Type)
}

// resolveLiteral materializes a literal command's header, looking the name
// up by index when one was given.
func (c *Context) resolveLiteral(cmd Command) (Header, error) {
	if cmd.Index >= 0 {
		ref, _, err := c.Dereference(cmd.Index)
		if err != nil {
			return Header{}, err
		}
		return Header{Name: ref.Name, Value: cmd.Value}, nil
	}
	return Header{Name: cmd.Name, Value: cmd.Value}, nil
}

// pendingRefset returns copies of the current reference-set entries, in the
// order they joined the reference set, for the decompressor's end-of-block
// emission pass.
func (c *Context) pendingRefset() []refEntry {
	out := make([]refEntry, len(c.refset))
	for i, re := range c.refset {
		out[i] = *re
	}
	return out
}
