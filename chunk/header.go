package chunk

import (
	"fmt"

	"github.com/joshuapare/chunkkit/internal/width"
)

// Header flag layout:
//
//	bit 0-2  body width code (capacity and used size)
//	bit 3-5  next pointer width code
//	bit 6    user tag byte follows
//	bit 7    growth disabled
const (
	flagBodyMask  = 0b0000_0111
	flagNextShift = 3
	flagNextMask  = 0b0011_1000
	flagTag       = 1 << 6
	flagFixed     = 1 << 7
)

const (
	// MinHeaderSize is the smallest encoded header: flags plus three 1-byte fields.
	MinHeaderSize = 4

	// MaxHeaderSize is the largest encoded header: flags, three 8-byte fields and a tag.
	MaxHeaderSize = 1 + 3*8 + 1
)

// Header is the decoded form of a chunk header.
//
// Capacity and Size share BodyWidth, which is valid because Size never
// exceeds Capacity.
type Header struct {
	BodyWidth width.Width
	NextWidth width.Width
	Capacity  uint64
	Size      uint64
	Next      Pointer
	Tag       uint8
	HasTag    bool
	Fixed     bool
}

// Len returns the encoded header length in bytes.
func (h Header) Len() int {
	n := 1 + 2*h.BodyWidth.Bytes() + h.NextWidth.Bytes()
	if h.HasTag {
		n++
	}
	return n
}

// Span returns the bytes the chunk occupies in the store, header included.
func (h Header) Span() uint64 { return uint64(h.Len()) + h.Capacity }

// Validate checks the structural invariants of h.
func (h Header) Validate() error {
	if !h.BodyWidth.Valid() || !h.NextWidth.Valid() {
		return fmt.Errorf("%w: invalid widths body=%d next=%d", ErrMalformedPointer, h.BodyWidth, h.NextWidth)
	}
	if h.Size > h.Capacity {
		return fmt.Errorf("%w: used size %d exceeds capacity %d", ErrMalformedPointer, h.Size, h.Capacity)
	}
	return nil
}

// Encode writes h into dst, which must hold at least h.Len() bytes.
func (h Header) Encode(dst []byte) error {
	if len(dst) < h.Len() {
		return fmt.Errorf("chunk: header buffer too short: %d < %d", len(dst), h.Len())
	}
	if err := h.Validate(); err != nil {
		return err
	}
	flags := h.BodyWidth.Code() | h.NextWidth.Code()<<flagNextShift
	if h.HasTag {
		flags |= flagTag
	}
	if h.Fixed {
		flags |= flagFixed
	}
	dst[0] = flags
	off := 1
	bw := h.BodyWidth.Bytes()
	if err := width.Put(dst[off:], h.BodyWidth, h.Capacity); err != nil {
		return fmt.Errorf("capacity: %w", err)
	}
	off += bw
	if err := width.Put(dst[off:], h.BodyWidth, h.Size); err != nil {
		return fmt.Errorf("used size: %w", err)
	}
	off += bw
	if err := width.Put(dst[off:], h.NextWidth, uint64(h.Next)); err != nil {
		return fmt.Errorf("next pointer: %w", err)
	}
	off += h.NextWidth.Bytes()
	if h.HasTag {
		dst[off] = h.Tag
	}
	return nil
}

// DecodeHeader parses a header from the start of src.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < MinHeaderSize {
		return Header{}, fmt.Errorf("%w: truncated header (%d bytes)", ErrMalformedPointer, len(src))
	}
	flags := src[0]
	bw, err := width.FromCode(flags & flagBodyMask)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformedPointer, err)
	}
	nw, err := width.FromCode((flags & flagNextMask) >> flagNextShift)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformedPointer, err)
	}
	h := Header{
		BodyWidth: bw,
		NextWidth: nw,
		HasTag:    flags&flagTag != 0,
		Fixed:     flags&flagFixed != 0,
	}
	if len(src) < h.Len() {
		return Header{}, fmt.Errorf("%w: truncated header (%d < %d bytes)", ErrMalformedPointer, len(src), h.Len())
	}
	off := 1
	h.Capacity = width.Get(src[off:], bw)
	off += bw.Bytes()
	h.Size = width.Get(src[off:], bw)
	off += bw.Bytes()
	h.Next = Pointer(width.Get(src[off:], nw))
	off += nw.Bytes()
	if h.HasTag {
		h.Tag = src[off]
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// HeaderFor lays out a header for a chunk occupying exactly span bytes,
// keeping the flags, tag, next pointer and used size of proto. Widths are
// never narrowed below proto's; the body width is widened until the
// resulting capacity fits.
func HeaderFor(span uint64, proto Header) (Header, error) {
	h := proto
	if !h.HasTag {
		h.Tag = 0
	}
	h.BodyWidth = width.Max(h.BodyWidth, width.W1)
	h.NextWidth = width.Max(h.NextWidth, width.For(uint64(h.Next)))
	for {
		l := uint64(h.Len())
		if span < l {
			return Header{}, fmt.Errorf("%w: span %d cannot hold a %d byte header", ErrIllegalState, span, l)
		}
		capacity := span - l
		if h.BodyWidth.Fits(capacity) {
			h.Capacity = capacity
			break
		}
		h.BodyWidth = width.For(capacity)
	}
	if h.Size > h.Capacity {
		return Header{}, fmt.Errorf("%w: used size %d exceeds capacity %d", ErrIllegalState, h.Size, h.Capacity)
	}
	return h, nil
}
