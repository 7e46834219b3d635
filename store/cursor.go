package store

import (
	"context"
	"fmt"
	"io"
)

// zeroBlock is the scratch source for FillZero.
var zeroBlock [4096]byte

// cursor implements Cursor on top of any Store.
type cursor struct {
	st     Store
	pos    int64
	closed bool
}

func newCursor(st Store) *cursor {
	return &cursor{st: st}
}

func (c *cursor) Pos() int64 { return c.pos }

func (c *cursor) Read(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	n, err := c.st.ReadAt(p, c.pos)
	c.pos += int64(n)
	return n, err
}

func (c *cursor) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	n, err := c.st.WriteAt(p, c.pos)
	c.pos += int64(n)
	return n, err
}

func (c *cursor) Seek(offset int64, whence int) (int64, error) {
	if c.closed {
		return 0, ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.pos + offset
	case io.SeekEnd:
		abs = c.st.Size() + offset
	default:
		return 0, fmt.Errorf("store: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("%w: seek to %d", ErrBadOffset, abs)
	}
	c.pos = abs
	return abs, nil
}

func (c *cursor) FillZero(n int64) error {
	for n > 0 {
		chunk := min(n, int64(len(zeroBlock)))
		if _, err := c.Write(zeroBlock[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (c *cursor) Flush() error {
	if c.closed {
		return ErrClosed
	}
	return c.st.Flush(context.Background())
}

func (c *cursor) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}
