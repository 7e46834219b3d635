package chain

import (
	"context"
	"fmt"
	"io"

	"github.com/joshuapare/chunkkit/chunk"
)

// Cursor is one session on a chain. It presents the used bytes of every
// chunk, in link order, as a single seekable stream.
//
// Sessions on the same chain nest: only the most recently opened one may be
// closed.
type Cursor struct {
	m      *Manager
	st     *chainState
	id     uint64
	parent uint64
	pos    uint64
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*Cursor)(nil)
	_ io.ByteReader      = (*Cursor)(nil)
	_ io.ByteWriter      = (*Cursor)(nil)
)

// Head returns the pointer of the chain's first chunk.
func (c *Cursor) Head() chunk.Pointer { return c.st.head }

// ID returns the session id. Parent returns the id of the session that was
// on top of the stack when this one opened, or 0.
func (c *Cursor) ID() uint64     { return c.id }
func (c *Cursor) Parent() uint64 { return c.parent }

// Pos returns the current logical position.
func (c *Cursor) Pos() uint64 { return c.pos }

// Size returns the logical length of the chain.
func (c *Cursor) Size() uint64 { return c.st.size() }

// Chunks returns the number of chunks in the chain.
func (c *Cursor) Chunks() int { return len(c.st.chunks) }

// Closed reports whether Close succeeded on this session.
func (c *Cursor) Closed() bool { return c.closed }

func (c *Cursor) ensureOpen() error {
	if c.closed {
		return fmt.Errorf("%w: session %d on %s is closed", chunk.ErrIllegalState, c.id, c.st.head)
	}
	return nil
}

func (c *Cursor) Read(p []byte) (int, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		i, off, ok := c.st.locate(c.pos)
		if !ok {
			break
		}
		ch := c.st.chunks[i]
		k := min(uint64(len(p)-n), ch.Size()-off)
		got, err := ch.ReadBody(p[n:n+int(k)], off)
		n += got
		c.pos += uint64(got)
		if err != nil && err != io.EOF {
			return n, err
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *Cursor) Write(p []byte) (int, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	if end := c.st.size(); c.pos > end {
		gap := c.pos - end
		if _, err := c.appendZeros(gap); err != nil {
			return 0, err
		}
	}
	n := 0
	for n < len(p) {
		var (
			k   int
			err error
		)
		if i, off, ok := c.st.locate(c.pos); ok {
			k, err = c.overwrite(i, off, p[n:])
		} else {
			k, err = c.m.appendTo(c.st, p[n:])
		}
		n += k
		c.pos += uint64(k)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Cursor) overwrite(i int, off uint64, p []byte) (int, error) {
	ch := c.st.chunks[i]
	k := min(uint64(len(p)), ch.Size()-off)
	return ch.WriteBody(p[:k], off)
}

func (c *Cursor) appendZeros(n uint64) (uint64, error) {
	var zero [512]byte
	var done uint64
	for done < n {
		k, err := c.m.appendTo(c.st, zero[:min(n-done, uint64(len(zero)))])
		done += uint64(k)
		if err != nil {
			return done, err
		}
	}
	return done, nil
}

// appendTo writes p past the logical end of s and returns the bytes written.
// It uses the tail chunk's slack, then retained empty chunks, then grows.
func (m *Manager) appendTo(s *chainState, p []byte) (int, error) {
	j := s.tail()
	for {
		ch := s.chunks[j]
		if slack := ch.Slack(); slack > 0 {
			k := min(uint64(len(p)), slack)
			off := ch.Size()
			got, err := ch.WriteBody(p[:k], off)
			if err != nil {
				return got, err
			}
			return got, ch.SetSize(off + uint64(got))
		}
		if j+1 < len(s.chunks) {
			j++
			continue
		}
		if err := m.grow(s, uint64(len(p))); err != nil {
			return 0, err
		}
		j = s.tail()
	}
}

func (c *Cursor) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := c.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(c.pos) + offset
	case io.SeekEnd:
		abs = int64(c.st.size()) + offset
	default:
		return 0, fmt.Errorf("chain: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("chain: seek to negative position %d", abs)
	}
	c.pos = uint64(abs)
	return abs, nil
}

// Truncate sets the logical length to n. Shrinking releases every chunk past
// the new end (or empties them when the manager retains tails) and lowers
// the used size of the last remaining chunk; capacities are kept. Growing
// appends zeros. The position is not changed.
func (c *Cursor) Truncate(n uint64) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	s := c.st
	total := s.size()
	if n > total {
		_, err := c.appendZeros(n - total)
		return err
	}
	if n == total && s.tail() == len(s.chunks)-1 {
		return nil
	}
	var start uint64
	i := 0
	for ; i < len(s.chunks)-1; i++ {
		sz := s.chunks[i].Size()
		if n <= start+sz {
			break
		}
		start += sz
	}
	if err := s.chunks[i].SetSize(n - start); err != nil {
		return err
	}
	return c.m.release(s, i)
}

// Trim truncates the chain at the current position.
func (c *Cursor) Trim() error { return c.Truncate(c.pos) }

// Flush persists pending store writes.
func (c *Cursor) Flush() error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.m.p.Store().Flush(context.Background())
}

// Close ends the session. Only the most recently opened session on a chain
// may be closed; closing any other open session fails and changes nothing.
func (c *Cursor) Close() error {
	s := c.st
	if c.closed {
		if len(s.stack) == 0 {
			return fmt.Errorf("%w: nothing left to end", chunk.ErrIllegalState)
		}
		return fmt.Errorf("%w: already closed", chunk.ErrIllegalState)
	}
	top := len(s.stack) - 1
	if s.stack[top] != c {
		ahead := 0
		for k := top; k >= 0 && s.stack[k] != c; k-- {
			ahead++
		}
		return fmt.Errorf("%w: closed in wrong order, %d open chains ahead", chunk.ErrIllegalState, ahead)
	}
	s.stack[top] = nil
	s.stack = s.stack[:top]
	c.closed = true
	if len(s.stack) == 0 {
		c.m.forget(s)
	}
	return nil
}
