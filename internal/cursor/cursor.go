// Package cursor provides a sequential reader over an immutable byte buffer.
package cursor

import (
	"bytes"
	"encoding/binary"

	"lmsdisasm/internal/common"
)

// Cursor reads forward through a byte buffer. Reads past the end fail with a
// truncated input error and leave the position unchanged.
type Cursor struct {
	buf []byte
	pos int
}

// New creates a cursor positioned at the start of buf.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Tell returns the current absolute offset.
func (c *Cursor) Tell() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek repositions the cursor. Seeking to the end is allowed.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return common.FormatError(pos, "seek outside buffer of %d bytes", len(c.buf))
	}
	c.pos = pos
	return nil
}

// Read returns the next n bytes.
func (c *Cursor) Read(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, common.TruncatedInputError(c.pos, n, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Rest consumes and returns every remaining byte.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.pos:]
	c.pos = len(c.buf)
	return b
}

// PeekByte returns the next byte without consuming it.
func (c *Cursor) PeekByte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, common.TruncatedInputError(c.pos, 1, 0)
	}
	return c.buf[c.pos], nil
}

func (c *Cursor) U8() (uint8, error) {
	b, err := c.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U16() (uint16, error) {
	b, err := c.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) U32() (uint32, error) {
	b, err := c.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// CString reads bytes up to a zero terminator and consumes the terminator.
func (c *Cursor) CString() ([]byte, error) {
	n := bytes.IndexByte(c.buf[c.pos:], 0)
	if n < 0 {
		return nil, common.TruncatedInputError(c.pos, c.Remaining()+1, c.Remaining())
	}
	s := c.buf[c.pos : c.pos+n]
	c.pos += n + 1
	return s, nil
}
