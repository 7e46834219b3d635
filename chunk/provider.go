package chunk

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/chunkkit/internal/buf"
	"github.com/joshuapare/chunkkit/internal/logger"
	"github.com/joshuapare/chunkkit/internal/width"
	"github.com/joshuapare/chunkkit/store"
)

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	// VerifyOnGet re-reads the header on every cache hit and fails with
	// ErrDesyncedCache when it disagrees with the cached copy.
	VerifyOnGet bool

	// Logger receives debug events. Default: discard.
	Logger *slog.Logger
}

// Provider is the single authority turning pointers into Chunks. It keeps an
// identity map so there is at most one live Chunk per pointer.
//
// NOT thread-safe.
type Provider struct {
	st     store.Store
	cache  map[Pointer]*Chunk
	verify bool
	log    *slog.Logger
}

// NewProvider creates a provider over st.
func NewProvider(st store.Store, opts *ProviderOptions) *Provider {
	p := &Provider{
		st:    st,
		cache: make(map[Pointer]*Chunk, 64),
		log:   logger.Or(nil),
	}
	if opts != nil {
		p.verify = opts.VerifyOnGet
		p.log = logger.Or(opts.Logger)
	}
	return p
}

// Store returns the backing store.
func (p *Provider) Store() store.Store { return p.st }

// Get returns the chunk at ptr, loading and caching it on first use.
func (p *Provider) Get(ptr Pointer) (*Chunk, error) {
	if c, ok := p.cache[ptr]; ok {
		if p.verify {
			if err := p.check(c); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	h, err := p.Load(ptr)
	if err != nil {
		return nil, err
	}
	c := &Chunk{p: p, ptr: ptr, hdr: h}
	p.cache[ptr] = c
	return c, nil
}

// Load reads and validates the header at ptr without touching the cache.
func (p *Provider) Load(ptr Pointer) (Header, error) {
	if ptr.IsNull() {
		return Header{}, fmt.Errorf("%w: null pointer", ErrMalformedPointer)
	}
	size := uint64(p.st.Size())
	if uint64(ptr) >= size {
		return Header{}, fmt.Errorf("%w: %s out of bounds (store size %d)", ErrMalformedPointer, ptr, size)
	}
	var raw [MaxHeaderSize]byte
	n, err := p.st.ReadAt(raw[:], int64(ptr))
	if err != nil && err != io.EOF {
		return Header{}, fmt.Errorf("chunk: read header at %s: %w", ptr, err)
	}
	h, err := DecodeHeader(raw[:n])
	if err != nil {
		return Header{}, fmt.Errorf("at %s: %w", ptr, err)
	}
	if _, err := buf.CheckRange(size, uint64(ptr), h.Span()); err != nil {
		return Header{}, fmt.Errorf("%w: %s body %v", ErrMalformedPointer, ptr, err)
	}
	return h, nil
}

// Check re-reads the header at ptr and compares it with the cached chunk.
// Pointers that are not cached are only validated.
func (p *Provider) Check(ptr Pointer) error {
	c, ok := p.cache[ptr]
	if !ok {
		_, err := p.Load(ptr)
		return err
	}
	return p.check(c)
}

func (p *Provider) check(c *Chunk) error {
	fresh, err := p.Load(c.ptr)
	if err != nil {
		return err
	}
	if fresh != c.hdr {
		return fmt.Errorf("%w: %s cached %+v, store has %+v", ErrDesyncedCache, c.ptr, c.hdr, fresh)
	}
	return nil
}

// Create writes a fresh header for a chunk occupying exactly span bytes at
// ptr and caches it, replacing any previous representative. The store must
// already cover [ptr, ptr+span).
func (p *Provider) Create(ptr Pointer, span uint64, proto Header) (*Chunk, error) {
	if ptr.IsNull() {
		return nil, fmt.Errorf("%w: cannot create chunk at null", ErrMalformedPointer)
	}
	if _, err := buf.CheckRange(uint64(p.st.Size()), uint64(ptr), span); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrMalformedPointer, ptr, err)
	}
	h, err := HeaderFor(span, proto)
	if err != nil {
		return nil, err
	}
	if err := p.writeHeader(ptr, h); err != nil {
		return nil, err
	}
	c, ok := p.cache[ptr]
	if !ok {
		c = &Chunk{p: p, ptr: ptr}
		p.cache[ptr] = c
	}
	c.hdr = h
	return c, nil
}

// Forget drops ptr from the cache. Existing *Chunk values for ptr become stale.
func (p *Provider) Forget(ptr Pointer) { delete(p.cache, ptr) }

// Reset drops every cached chunk.
func (p *Provider) Reset() { clear(p.cache) }

// Cached returns the number of cached chunks.
func (p *Provider) Cached() int { return len(p.cache) }

// Walk returns the chain starting at head in link order.
func (p *Provider) Walk(head Pointer) ([]*Chunk, error) {
	var chain []*Chunk
	seen := make(map[Pointer]struct{})
	for ptr := head; !ptr.IsNull(); {
		if _, dup := seen[ptr]; dup {
			return nil, fmt.Errorf("%w: chain from %s loops back to %s", ErrMalformedPointer, head, ptr)
		}
		seen[ptr] = struct{}{}
		c, err := p.Get(ptr)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		ptr = c.Next()
	}
	return chain, nil
}

// commit persists a changed header for c. Widths only grow: when the new
// header is longer than the old one it takes the extra bytes from the front
// of the body, shifting the used bytes forward and shrinking capacity, so
// the chunk's span never changes.
func (p *Provider) commit(c *Chunk, nh Header) error {
	nh.BodyWidth = width.Max(nh.BodyWidth, width.For(nh.Capacity))
	nh.NextWidth = width.Max(nh.NextWidth, width.For(uint64(nh.Next)))
	old := c.hdr

	if grow := nh.Len() - old.Len(); grow > 0 {
		delta := uint64(grow)
		if nh.Capacity < delta || nh.Capacity-delta < nh.Size {
			return fmt.Errorf("%w: %s needs %d more header bytes, slack is %d",
				ErrBitDepthOutOfSpace, c.ptr, delta, nh.Capacity-min(nh.Capacity, nh.Size))
		}
		if err := p.shiftBody(c, delta, min(old.Size, nh.Size)); err != nil {
			return err
		}
		nh.Capacity -= delta
		p.log.Debug("chunk header widened", "ptr", uint64(c.ptr), "by", delta, "capacity", nh.Capacity)
	}
	if nh.Size > nh.Capacity {
		return fmt.Errorf("%w: size %d exceeds capacity %d of %s", ErrIllegalState, nh.Size, nh.Capacity, c.ptr)
	}
	if err := p.writeHeader(c.ptr, nh); err != nil {
		return err
	}
	c.hdr = nh
	return nil
}

// shiftBody moves the first n body bytes of c forward by delta.
func (p *Provider) shiftBody(c *Chunk, delta, n uint64) error {
	if n == 0 {
		return nil
	}
	b := make([]byte, n)
	if _, err := p.st.ReadAt(b, int64(c.BodyStart())); err != nil {
		return fmt.Errorf("chunk: shift body of %s: %w", c.ptr, err)
	}
	if _, err := p.st.WriteAt(b, int64(c.BodyStart()+delta)); err != nil {
		return fmt.Errorf("chunk: shift body of %s: %w", c.ptr, err)
	}
	return nil
}

func (p *Provider) writeHeader(ptr Pointer, h Header) error {
	var raw [MaxHeaderSize]byte
	if err := h.Encode(raw[:]); err != nil {
		return fmt.Errorf("chunk: encode header at %s: %w", ptr, err)
	}
	if _, err := p.st.WriteAt(raw[:h.Len()], int64(ptr)); err != nil {
		return fmt.Errorf("chunk: write header at %s: %w", ptr, err)
	}
	return nil
}
