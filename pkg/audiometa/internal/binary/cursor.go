package binary

// Cursor is a sequential, bounds-checked view over a region of a SafeReader.
// The region's end is a hard upper bound: reads past it fail even when the
// physical source continues, which is what keeps recursion into declared
// child regions honest.
type Cursor struct {
	sr  *SafeReader
	pos int64
	end int64
}

// Cursor returns a sequential reader over [start, end).
func (sr *SafeReader) Cursor(start, end int64) *Cursor {
	if end > sr.size {
		end = sr.size
	}
	return &Cursor{sr: sr, pos: start, end: end}
}

// Pos returns the current absolute position.
func (c *Cursor) Pos() int64 { return c.pos }

// Path returns the path of the underlying source, for error reporting.
func (c *Cursor) Path() string { return c.sr.path }

// Remaining returns the number of bytes left in the region.
func (c *Cursor) Remaining() int64 { return c.end - c.pos }

// Seek moves the cursor to an absolute position within the region.
func (c *Cursor) Seek(pos int64) { c.pos = pos }

// Skip advances the cursor by n bytes without validating that the skipped
// range is readable. A subsequent read past the end still fails.
func (c *Cursor) Skip(n int64) { c.pos += n }

// Sub returns a cursor over the next n bytes and advances past them.
func (c *Cursor) Sub(n int64) *Cursor {
	sub := &Cursor{sr: c.sr, pos: c.pos, end: c.pos + n}
	if sub.end > c.end {
		sub.end = c.end
	}
	c.pos += n
	return sub
}

func (c *Cursor) check(n int, what string) error {
	if c.pos+int64(n) > c.end {
		return &OutOfBoundsError{
			Path:   c.sr.path,
			Offset: c.pos,
			Length: n,
			Size:   c.end,
			What:   what,
		}
	}
	return nil
}

// Bytes reads the next n bytes.
func (c *Cursor) Bytes(n int, what string) ([]byte, error) {
	if err := c.check(n, what); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := c.sr.ReadAt(buf, c.pos, what); err != nil {
		return nil, err
	}
	c.pos += int64(n)
	return buf, nil
}

// String reads the next n bytes as a string.
func (c *Cursor) String(n int, what string) (string, error) {
	b, err := c.Bytes(n, what)
	return string(b), err
}

// U8 reads one byte.
func (c *Cursor) U8(what string) (uint8, error) { return cursorRead[uint8](c, what) }

// U16 reads a big-endian uint16.
func (c *Cursor) U16(what string) (uint16, error) { return cursorRead[uint16](c, what) }

// U32 reads a big-endian uint32.
func (c *Cursor) U32(what string) (uint32, error) { return cursorRead[uint32](c, what) }

// U64 reads a big-endian uint64.
func (c *Cursor) U64(what string) (uint64, error) { return cursorRead[uint64](c, what) }

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE(what string) (uint16, error) { return cursorReadLE[uint16](c, what) }

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE(what string) (uint32, error) { return cursorReadLE[uint32](c, what) }

// U64LE reads a little-endian uint64.
func (c *Cursor) U64LE(what string) (uint64, error) { return cursorReadLE[uint64](c, what) }

func cursorRead[T Uint](c *Cursor, what string) (T, error) {
	if err := c.check(widthOf[T](), what); err != nil {
		return 0, err
	}
	v, err := Read[T](c.sr, c.pos, what)
	if err != nil {
		return 0, err
	}
	c.pos += int64(widthOf[T]())
	return v, nil
}

func cursorReadLE[T Uint](c *Cursor, what string) (T, error) {
	if err := c.check(widthOf[T](), what); err != nil {
		return 0, err
	}
	v, err := ReadLE[T](c.sr, c.pos, what)
	if err != nil {
		return 0, err
	}
	c.pos += int64(widthOf[T]())
	return v, nil
}

// VarUintUnknown is returned by VarUint for the all-ones encoding, which EBML
// uses for "unknown size" (a streamed Segment, typically).
const VarUintUnknown = ^uint64(0)

// VarUint reads an EBML variable-length unsigned integer with the length
// marker bit stripped. Returns VarUintUnknown when every value bit is set.
func (c *Cursor) VarUint(what string) (uint64, error) {
	first, err := c.U8(what)
	if err != nil {
		return 0, err
	}
	if first == 0 {
		return 0, &OutOfBoundsError{Path: c.sr.path, Offset: c.pos - 1, Length: 1, Size: c.end, What: what + " (invalid varint)"}
	}
	width := 1
	for mask := uint8(0x80); first&mask == 0; mask >>= 1 {
		width++
	}
	v := uint64(first) & (uint64(0xFF) >> width)
	allOnes := v == uint64(0xFF)>>width
	for i := 1; i < width; i++ {
		b, err := c.U8(what)
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			allOnes = false
		}
		v = v<<8 | uint64(b)
	}
	if allOnes {
		return VarUintUnknown, nil
	}
	return v, nil
}

// VarID reads an EBML element ID: same encoding as VarUint but the length
// marker bit is kept, matching how DocType tables list IDs.
func (c *Cursor) VarID(what string) (uint64, error) {
	first, err := c.U8(what)
	if err != nil {
		return 0, err
	}
	if first == 0 {
		return 0, &OutOfBoundsError{Path: c.sr.path, Offset: c.pos - 1, Length: 1, Size: c.end, What: what + " (invalid element id)"}
	}
	width := 1
	for mask := uint8(0x80); first&mask == 0; mask >>= 1 {
		width++
	}
	v := uint64(first)
	for i := 1; i < width; i++ {
		b, err := c.U8(what)
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint64(b)
	}
	return v, nil
}
