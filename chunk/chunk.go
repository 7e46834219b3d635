package chunk

import (
	"fmt"
	"io"
)

// Chunk is the in-memory representative of one chunk header. The Provider
// hands out at most one Chunk per pointer, so every holder observes the same
// header state.
type Chunk struct {
	p   *Provider
	ptr Pointer
	hdr Header
}

// Ptr returns the chunk's pointer.
func (c *Chunk) Ptr() Pointer { return c.ptr }

// Header returns a copy of the decoded header.
func (c *Chunk) Header() Header { return c.hdr }

// Capacity returns the number of body bytes reserved.
func (c *Chunk) Capacity() uint64 { return c.hdr.Capacity }

// Size returns the number of logically significant body bytes.
func (c *Chunk) Size() uint64 { return c.hdr.Size }

// Next returns the continuation pointer, or Null.
func (c *Chunk) Next() Pointer { return c.hdr.Next }

// Tag returns the user tag and whether one is set.
func (c *Chunk) Tag() (uint8, bool) { return c.hdr.Tag, c.hdr.HasTag }

// Fixed reports whether growth past capacity is disabled.
func (c *Chunk) Fixed() bool { return c.hdr.Fixed }

// HeaderLen returns the encoded header length.
func (c *Chunk) HeaderLen() uint64 { return uint64(c.hdr.Len()) }

// BodyStart returns the store offset of the first body byte.
func (c *Chunk) BodyStart() uint64 { return uint64(c.ptr) + c.HeaderLen() }

// Span returns the bytes the chunk occupies, header included.
func (c *Chunk) Span() uint64 { return c.hdr.Span() }

// End returns the store offset just past the chunk's body.
func (c *Chunk) End() uint64 { return uint64(c.ptr) + c.hdr.Span() }

// Slack returns the unused body bytes.
func (c *Chunk) Slack() uint64 { return c.hdr.Capacity - c.hdr.Size }

// SetSize changes the used size. n must not exceed Capacity.
func (c *Chunk) SetSize(n uint64) error {
	if n == c.hdr.Size {
		return nil
	}
	if n > c.hdr.Capacity {
		return fmt.Errorf("%w: size %d exceeds capacity %d of %s", ErrIllegalState, n, c.hdr.Capacity, c.ptr)
	}
	h := c.hdr
	h.Size = n
	return c.p.commit(c, h)
}

// SetNext links the chunk to a continuation. When next does not fit the
// header's next width, the header is widened in place using body slack;
// without enough slack ErrBitDepthOutOfSpace is returned.
func (c *Chunk) SetNext(next Pointer) error {
	if next == c.hdr.Next {
		return nil
	}
	h := c.hdr
	h.Next = next
	return c.p.commit(c, h)
}

// ReadBody reads body bytes starting at off, bounded by Capacity.
func (c *Chunk) ReadBody(p []byte, off uint64) (int, error) {
	if off >= c.hdr.Capacity {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := min(uint64(len(p)), c.hdr.Capacity-off)
	got, err := c.p.st.ReadAt(p[:n], int64(c.BodyStart()+off))
	if err == io.EOF && uint64(got) == n {
		err = nil
	}
	if err == nil && n < uint64(len(p)) {
		err = io.EOF
	}
	return got, err
}

// WriteBody writes body bytes starting at off. Bytes past Capacity are not
// written and the short count is returned with ErrIllegalState. The used
// size is not changed.
func (c *Chunk) WriteBody(p []byte, off uint64) (int, error) {
	if off > c.hdr.Capacity {
		return 0, fmt.Errorf("%w: write at %d past capacity %d of %s", ErrIllegalState, off, c.hdr.Capacity, c.ptr)
	}
	n := min(uint64(len(p)), c.hdr.Capacity-off)
	got, err := c.p.st.WriteAt(p[:n], int64(c.BodyStart()+off))
	if err != nil {
		return got, err
	}
	if n < uint64(len(p)) {
		return got, fmt.Errorf("%w: chunk %s exhausted at capacity %d", ErrIllegalState, c.ptr, c.hdr.Capacity)
	}
	return got, nil
}

// Body returns a copy of the used body bytes.
func (c *Chunk) Body() ([]byte, error) {
	b := make([]byte, c.hdr.Size)
	if _, err := c.ReadBody(b, 0); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Chunk) String() string {
	s := fmt.Sprintf("Chunk{%s size=%d/%d", c.ptr, c.hdr.Size, c.hdr.Capacity)
	if !c.hdr.Next.IsNull() {
		s += " next=" + c.hdr.Next.String()
	}
	if c.hdr.HasTag {
		s += fmt.Sprintf(" tag=%d", c.hdr.Tag)
	}
	if c.hdr.Fixed {
		s += " fixed"
	}
	return s + "}"
}
