package chain

import (
	"github.com/joshuapare/chunkkit/internal/width"
)

// Fixed-width little-endian integer helpers. The odd widths (24, 40, 48)
// are what the width codec produces for mid-sized values.

func (c *Cursor) ReadU8() (uint8, error) {
	return c.ReadByte()
}

func (c *Cursor) ReadU16() (uint16, error) {
	v, err := width.Read(c, width.W2)
	return uint16(v), err
}

func (c *Cursor) ReadU24() (uint32, error) {
	v, err := width.Read(c, width.W3)
	return uint32(v), err
}

func (c *Cursor) ReadU32() (uint32, error) {
	v, err := width.Read(c, width.W4)
	return uint32(v), err
}

func (c *Cursor) ReadU40() (uint64, error) { return width.Read(c, width.W5) }

func (c *Cursor) ReadU48() (uint64, error) { return width.Read(c, width.W6) }

func (c *Cursor) ReadU64() (uint64, error) { return width.Read(c, width.W8) }

// ReadWidth reads a w-byte value.
func (c *Cursor) ReadWidth(w width.Width) (uint64, error) { return width.Read(c, w) }

func (c *Cursor) WriteU8(v uint8) error { return c.WriteByte(v) }

func (c *Cursor) WriteU16(v uint16) error { return width.Write(c, width.W2, uint64(v)) }

// WriteU24 fails with chunk.ErrBitDepthOutOfSpace when v needs more than 24 bits.
func (c *Cursor) WriteU24(v uint32) error { return width.Write(c, width.W3, uint64(v)) }

func (c *Cursor) WriteU32(v uint32) error { return width.Write(c, width.W4, uint64(v)) }

func (c *Cursor) WriteU40(v uint64) error { return width.Write(c, width.W5, v) }

func (c *Cursor) WriteU48(v uint64) error { return width.Write(c, width.W6, v) }

func (c *Cursor) WriteU64(v uint64) error { return width.Write(c, width.W8, v) }

// WriteWidth writes v in w bytes.
func (c *Cursor) WriteWidth(w width.Width, v uint64) error { return width.Write(c, w, v) }
