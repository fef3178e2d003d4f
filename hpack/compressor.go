package hpack

// Compressor turns header lists into header-block fragments. It owns the
// encoding direction's context; the peer's decompressor must observe every
// block this compressor produces, in order, or the two contexts diverge.
type Compressor struct {
	ctx          *Context
	opts         Options
	pendingLimit *int
}

// NewCompressor returns a compressor with the given options. A non-positive
// table size falls back to the default.
func NewCompressor(opts Options) *Compressor {
	if opts.TableSize <= 0 {
		opts.TableSize = DefaultOptions().TableSize
	}
	return &Compressor{ctx: NewContext(opts.TableSize), opts: opts}
}

// Context exposes the compressor's context for inspection.
func (c *Compressor) Context() *Context { return c.ctx }

// ChangeTableSize schedules a table-size-change command for the next block
// and is how a SETTINGS_HEADER_TABLE_SIZE update reaches the peer.
func (c *Compressor) ChangeTableSize(n int) {
	c.pendingLimit = &n
}

// Encode produces one header-block fragment for headers. Names are
// lowercased first; literal names must be lowercase on the wire.
func (c *Compressor) Encode(headers []Header) ([]byte, error) {
	norm := make([]Header, len(headers))
	for i, h := range headers {
		norm[i] = h.normalized()
	}

	var out []byte
	if c.pendingLimit != nil {
		cmd := Command{Type: CmdChangeTableSize, Size: *c.pendingLimit}
		if _, err := c.ctx.Process(cmd); err != nil {
			return nil, err
		}
		var err error
		out, err = appendCommand(out, cmd, c.opts.Huffman)
		if err != nil {
			return nil, err
		}
		c.pendingLimit = nil
	}

	var cmds []Command
	var err error
	switch c.opts.RefSet {
	case RefSetNever:
		cmds, err = encodePlain(c.ctx, norm, c.opts)
	case RefSetAlways:
		cmds, err = encodeDiff(c.ctx, norm, c.opts)
	case RefSetShorter:
		// Run both strategies against copies, keep whichever emitted fewer
		// commands, and replay the winner against the live context. Plain
		// wins ties.
		var plain, diff []Command
		plain, err = encodePlain(c.ctx.Dup(), norm, c.opts)
		if err != nil {
			break
		}
		diff, err = encodeDiff(c.ctx.Dup(), norm, c.opts)
		if err != nil {
			break
		}
		cmds = plain
		if len(diff) < len(plain) {
			cmds = diff
		}
		err = replay(c.ctx, cmds)
	}
	if err != nil {
		return nil, err
	}

	for _, cmd := range cmds {
		out, err = appendCommand(out, cmd, c.opts.Huffman)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// replay applies an already-decided command list to ctx. The commands were
// generated against a Dup of ctx, so the state evolution is identical.
func replay(ctx *Context, cmds []Command) error {
	for _, cmd := range cmds {
		if _, err := ctx.Process(cmd); err != nil {
			return err
		}
	}
	return nil
}

// encodePlain is the no-reference-set strategy: empty the reference set if
// the previous block left one, then emit each header as an indexed
// representation (table hit) or a literal.
func encodePlain(ctx *Context, headers []Header, opts Options) ([]Command, error) {
	var cmds []Command
	emit := func(cmd Command) error {
		if _, err := ctx.Process(cmd); err != nil {
			return err
		}
		cmds = append(cmds, cmd)
		return nil
	}

	if len(ctx.refset) > 0 {
		if err := emit(Command{Type: CmdRefSetEmpty}); err != nil {
			return nil, err
		}
	}

	for _, h := range headers {
		idx := fullLookup(ctx, h, opts.Index)
		if idx >= 0 {
			if ctx.findRef(idx) != nil {
				// The entry joined the reference set earlier in this block;
				// a duplicate needs a toggle-off/toggle-on pair to emit
				// again.
				if err := emit(Command{Type: CmdIndexed, Index: idx}); err != nil {
					return nil, err
				}
			}
			if err := emit(Command{Type: CmdIndexed, Index: idx}); err != nil {
				return nil, err
			}
			continue
		}

		cmd := literalCommand(ctx, h, opts.Index)
		if err := emit(cmd); err != nil {
			return nil, err
		}
	}
	return cmds, nil
}

// encodeDiff is the reference-set differencing strategy. Headers already in
// the reference set are deferred to the decoder's implicit end-of-block
// emission; duplicates and stale entries are resolved with indexed toggle
// pairs; entries about to be evicted while carrying a deferred emission are
// resurrected first so the decoder's view is restored.
func encodeDiff(ctx *Context, headers []Header, opts Options) ([]Command, error) {
	ctx.Unmark()

	var cmds []Command
	emit := func(cmd Command) error {
		if _, err := ctx.Process(cmd); err != nil {
			return err
		}
		cmds = append(cmds, cmd)
		return nil
	}

	// emitAdding runs a command that grows the dynamic table, first rescuing
	// any common-marked reference whose slot the insertion would evict.
	emitAdding := func(cmd Command, cost int) error {
		for _, re := range ctx.EvictionPreview(cost) {
			if re.mark != MarkCommon {
				continue
			}
			if err := emit(Command{Type: CmdIndexed, Index: re.index}); err != nil {
				return err
			}
			if err := emit(Command{Type: CmdIndexed, Index: re.index}); err != nil {
				return err
			}
		}
		return emit(cmd)
	}

	for _, h := range headers {
		re := ctx.findRefByHeader(h)
		if re == nil {
			if idx := fullLookup(ctx, h, opts.Index); idx >= 0 {
				_, isStatic, err := ctx.Dereference(idx)
				if err != nil {
					return nil, err
				}
				cmd := Command{Type: CmdIndexed, Index: idx}
				if isStatic {
					// The indexed representation copies the entry into the
					// dynamic table, which can evict.
					err = emitAdding(cmd, h.Size())
				} else {
					err = emit(cmd)
				}
				if err != nil {
					return nil, err
				}
				continue
			}
			cmd := literalCommand(ctx, h, opts.Index)
			var err error
			if cmd.Type == CmdIncremental {
				err = emitAdding(cmd, h.Size())
			} else {
				err = emit(cmd)
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		switch re.mark {
		case MarkNone:
			// First appearance: the reference set already carries it, so
			// defer the emission to the decoder's end-of-block pass.
			re.mark = MarkCommon
		case MarkCommon:
			// Second appearance: the deferred emission can no longer stay
			// implicit. Two toggle pairs make both appearances explicit.
			idx := re.index
			for i := 0; i < 4; i++ {
				if err := emit(Command{Type: CmdIndexed, Index: idx}); err != nil {
					return nil, err
				}
			}
		case MarkEmitted:
			// Another duplicate of an explicitly emitted header.
			idx := re.index
			for i := 0; i < 2; i++ {
				if err := emit(Command{Type: CmdIndexed, Index: idx}); err != nil {
					return nil, err
				}
			}
		}
	}

	// Peel off reference-set entries this block never touched; leaving them
	// would make the decoder emit stale headers.
	for _, re := range ctx.pendingRefset() {
		if re.mark == MarkNone {
			if err := emit(Command{Type: CmdIndexed, Index: re.index}); err != nil {
				return nil, err
			}
		}
	}
	return cmds, nil
}

// literalCommand builds the literal representation for a header with no full
// table match, using a name index when the mode's lookups find one.
func literalCommand(ctx *Context, h Header, mode IndexMode) Command {
	t := CmdNoIndex
	if mode.indexLiterals() {
		t = CmdIncremental
	}
	return Command{
		Type:  t,
		Index: nameLookup(ctx, h.Name, mode),
		Name:  h.Name,
		Value: h.Value,
	}
}

// fullLookup finds a (name, value) match in the tables the mode allows,
// returning a zero-based index or -1.
func fullLookup(ctx *Context, h Header, mode IndexMode) int {
	if mode.lookupDynamic() {
		for i, e := range ctx.table {
			if e == h {
				return i
			}
		}
	}
	if mode.lookupStatic() {
		for i, e := range staticTable {
			if e == h {
				return len(ctx.table) + i
			}
		}
	}
	return -1
}

// nameLookup finds a name match in the tables the mode allows, returning a
// zero-based index or -1.
func nameLookup(ctx *Context, name string, mode IndexMode) int {
	if mode.lookupDynamic() {
		for i, e := range ctx.table {
			if e.Name == name {
				return i
			}
		}
	}
	if mode.lookupStatic() {
		for i, e := range staticTable {
			if e.Name == name {
				return len(ctx.table) + i
			}
		}
	}
	return -1
}
