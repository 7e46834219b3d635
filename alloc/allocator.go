package alloc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/chunkkit/chain"
	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/buf"
	"github.com/joshuapare/chunkkit/internal/width"
	"github.com/joshuapare/chunkkit/store"
)

// FreeEntry describes one free chunk.
type FreeEntry struct {
	Ptr      chunk.Pointer
	Capacity uint64
	Span     uint64
}

// Stats holds allocator counters.
type Stats struct {
	Allocs           int    // Alloc calls that returned a chunk
	Reused           int    // allocations served from the registry
	Grown            int    // allocations that extended the store
	GrowBytes        uint64 // bytes added to the store
	Splits           int    // reused regions split in two
	Frees            int    // chunks freed
	CoalesceForward  int    // merges with the following free chunk
	CoalesceBackward int    // merges with the preceding free chunk
	FreeChunks       int    // current registry entries
	FreeBytes        uint64 // current bytes held by free chunks, headers included
}

// Allocator hands out chunks, reusing freed ones before growing the store.
//
// Reuse order for a request:
//  1. with an Approve predicate: the first free chunk in ascending offset
//     order that is large enough and approved; if none is approved the
//     store grows
//  2. otherwise the smallest free chunk that is large enough
//  3. otherwise a new chunk at the end of the store
//
// Freed chunks merge with physically adjacent free chunks. Every free and
// every reuse is persisted to the registry chain once one is attached.
//
// NOT thread-safe.
type Allocator struct {
	p     *chunk.Provider
	st    store.Store
	opts  *Options
	log   *slog.Logger
	free  *freeIndex
	stats Stats

	regHead   chunk.Pointer
	regChains *chain.Manager
}

var _ chain.Allocator = (*Allocator)(nil)

// New creates an allocator over the provider's store with an empty free
// index. Attach a registry with AttachRegistry or CreateRegistry to persist it.
func New(p *chunk.Provider, opts *Options) (*Allocator, error) {
	o := opts.norm()
	a := &Allocator{
		p:    p,
		st:   p.Store(),
		opts: o,
		log:  o.Logger,
		free: newFreeIndex(),
	}
	a.regChains = chain.NewManager(p, growOnly{a}, &chain.Options{RetainTail: true, Logger: o.Logger})
	if uint64(a.st.Size()) < o.DataStart {
		if err := a.st.SetSize(int64(o.DataStart)); err != nil {
			return nil, fmt.Errorf("%w: reserve %d bytes: %w", ErrGrowFail, o.DataStart, err)
		}
	}
	return a, nil
}

// Provider returns the chunk provider.
func (a *Allocator) Provider() *chunk.Provider { return a.p }

// DataStart returns the first offset chunks may occupy.
func (a *Allocator) DataStart() uint64 { return a.opts.DataStart }

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() Stats {
	s := a.stats
	s.FreeChunks = a.free.len()
	s.FreeBytes = a.free.bytes
	return s
}

// proto builds the header template for req. The next width is sized for
// pointers up to twice the store end so that linking a continuation rarely
// needs to widen the header.
func (a *Allocator) proto(req chunk.Request, end uint64) chunk.Header {
	h := req.Proto()
	h.BodyWidth = width.For(req.Size)
	h.NextWidth = width.For(min(end, math.MaxUint64/2) * 2)
	return h
}

// spanFor returns the bytes a chunk for h with capacity n occupies.
func spanFor(h chunk.Header, n uint64) (uint64, error) {
	span, ok := buf.AddOverflowSafe(uint64(h.Len()), n)
	if !ok || span > math.MaxInt64 {
		return 0, fmt.Errorf("%w: request of %d bytes", chunk.ErrBitDepthOutOfSpace, n)
	}
	return span, nil
}

// fits reports whether free region r can hold a chunk of capacity n laid
// out from proto. The region's next width is kept.
func fits(r *freeRegion, proto chunk.Header, n uint64) bool {
	proto.NextWidth = r.nw
	h, err := chunk.HeaderFor(r.span, proto)
	return err == nil && h.Capacity >= n
}

// Alloc returns a chunk with at least req.Size bytes of capacity.
func (a *Allocator) Alloc(req chunk.Request) (*chunk.Chunk, error) {
	proto := a.proto(req, uint64(a.st.Size()))
	if _, err := spanFor(proto, req.Size); err != nil {
		return nil, err
	}

	var (
		r   *freeRegion
		err error
	)
	if req.Approve != nil {
		r, err = a.approved(req, proto)
		if err != nil {
			return nil, err
		}
	} else if best, ok := a.free.bestFit(func(r *freeRegion) bool { return fits(r, proto, req.Size) }); ok {
		r = best
	}

	var c *chunk.Chunk
	if r != nil {
		c, err = a.reuse(r, req, proto)
	} else {
		c, err = a.grow(req)
	}
	if err != nil {
		return nil, err
	}
	a.stats.Allocs++

	if req.Populate != nil {
		if perr := req.Populate(c); perr != nil {
			return nil, errors.Join(fmt.Errorf("alloc: populate %s: %w", c.Ptr(), perr), a.Free(c.Ptr()))
		}
	}
	return c, nil
}

// approved scans free regions in ascending offset order for the first one
// that fits and that req.Approve accepts.
func (a *Allocator) approved(req chunk.Request, proto chunk.Header) (*freeRegion, error) {
	for _, r := range a.free.ascending() {
		if !fits(r, proto, req.Size) {
			continue
		}
		cand, err := a.p.Get(chunk.Pointer(r.off))
		if err != nil {
			return nil, fmt.Errorf("alloc: load free chunk: %w", err)
		}
		if req.Approve(cand) {
			return r, nil
		}
	}
	return nil, nil
}

// reuse turns free region r into a chunk for req, splitting off the
// remainder when it is at least MinSplit bytes.
func (a *Allocator) reuse(r *freeRegion, req chunk.Request, proto chunk.Header) (*chunk.Chunk, error) {
	proto.NextWidth = r.nw
	a.free.remove(r.off)
	span := r.span
	want, err := spanFor(proto, req.Size)
	if err != nil {
		return nil, err
	}
	minRest := max(a.opts.MinSplit, uint64(chunk.Header{BodyWidth: width.W1, NextWidth: r.nw}.Len()))
	if span > want && span-want >= minRest {
		rest := chunk.Pointer(r.off + want)
		if _, err := a.p.Create(rest, span-want, chunk.Header{NextWidth: r.nw}); err != nil {
			return nil, err
		}
		a.free.insert(uint64(rest), span-want, r.nw)
		span = want
		a.stats.Splits++
	}
	c, err := a.p.Create(chunk.Pointer(r.off), span, proto)
	if err != nil {
		return nil, err
	}
	a.stats.Reused++
	a.log.Debug("alloc reuse", "ptr", uint64(c.Ptr()), "need", req.Size, "capacity", c.Capacity(), "region", r.span)
	if err := a.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

// grow appends a new chunk for req at the end of the store.
func (a *Allocator) grow(req chunk.Request) (*chunk.Chunk, error) {
	off := uint64(a.st.Size())
	proto := a.proto(req, off+min(req.Size, math.MaxInt64/2)+chunk.MaxHeaderSize)
	span, err := spanFor(proto, req.Size)
	if err != nil {
		return nil, err
	}
	end, ok := buf.AddOverflowSafe(off, span)
	if !ok || end > math.MaxInt64 {
		return nil, fmt.Errorf("%w: store end %d + %d", chunk.ErrBitDepthOutOfSpace, off, span)
	}
	if err := a.st.SetSize(int64(end)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGrowFail, err)
	}
	c, err := a.p.Create(chunk.Pointer(off), span, proto)
	if err != nil {
		return nil, err
	}
	a.stats.Grown++
	a.stats.GrowBytes += span
	a.log.Debug("alloc grow", "ptr", off, "need", req.Size, "span", span)
	return c, nil
}

// Free returns chunks to the registry, merging each with adjacent free
// chunks. The registry is persisted once after all chunks are released.
// A batch naming a registry chunk is rejected before anything is released.
func (a *Allocator) Free(ptrs ...chunk.Pointer) error {
	reg, err := a.registryChunks()
	if err != nil {
		return err
	}
	for _, ptr := range ptrs {
		if _, ok := reg[ptr]; ok {
			return fmt.Errorf("%w: %s", ErrRegistryChunk, ptr)
		}
	}
	for _, ptr := range ptrs {
		if err := a.release(ptr); err != nil {
			return err
		}
	}
	return a.persist()
}

func (a *Allocator) release(ptr chunk.Pointer) error {
	if ptr.IsNull() {
		return fmt.Errorf("%w: free of null", chunk.ErrMalformedPointer)
	}
	if r, ok := a.free.covering(uint64(ptr)); ok {
		return fmt.Errorf("%w: %s lies in free chunk %s", ErrDoubleFree, ptr, chunk.Pointer(r.off))
	}
	c, err := a.p.Get(ptr)
	if err != nil {
		return err
	}
	off, span, nw := uint64(ptr), c.Span(), c.Header().NextWidth

	if next, ok := a.free.byOff[off+span]; ok {
		a.free.remove(next.off)
		a.p.Forget(chunk.Pointer(next.off))
		span += next.span
		a.stats.CoalesceForward++
	}
	if prev, ok := a.free.endingAt(off); ok {
		a.free.remove(prev.off)
		a.p.Forget(ptr)
		off, nw = prev.off, prev.nw
		span += prev.span
		a.stats.CoalesceBackward++
	}
	if _, err := a.p.Create(chunk.Pointer(off), span, chunk.Header{NextWidth: nw}); err != nil {
		return err
	}
	a.free.insert(off, span, nw)
	a.stats.Frees++
	a.log.Debug("alloc free", "ptr", uint64(ptr), "region", off, "span", span)
	return nil
}

func (a *Allocator) registryChunks() (map[chunk.Pointer]struct{}, error) {
	if a.regHead.IsNull() {
		return nil, nil
	}
	ptrs, err := a.regChains.Chunks(a.regHead)
	if err != nil {
		return nil, fmt.Errorf("alloc: walk registry: %w", err)
	}
	set := make(map[chunk.Pointer]struct{}, len(ptrs))
	for _, p := range ptrs {
		set[p] = struct{}{}
	}
	return set, nil
}

// IsFree reports whether ptr starts a free chunk.
func (a *Allocator) IsFree(ptr chunk.Pointer) bool {
	_, ok := a.free.byOff[uint64(ptr)]
	return ok
}

// FreeEntries lists the free chunks in ascending offset order.
func (a *Allocator) FreeEntries() ([]FreeEntry, error) {
	regions := a.free.ascending()
	out := make([]FreeEntry, 0, len(regions))
	for _, r := range regions {
		c, err := a.p.Get(chunk.Pointer(r.off))
		if err != nil {
			return nil, err
		}
		out = append(out, FreeEntry{Ptr: c.Ptr(), Capacity: c.Capacity(), Span: r.span})
	}
	return out, nil
}

// Discard forgets every free chunk without touching the store or the
// persisted registry. Compaction uses it before moving chunks.
func (a *Allocator) Discard() {
	a.free.reset()
}

// growOnly serves the registry chain. It always appends to the store so
// that persisting the registry never reuses a free chunk, which would
// change the registry while it is being written.
type growOnly struct{ a *Allocator }

func (g growOnly) Alloc(req chunk.Request) (*chunk.Chunk, error) { return g.a.grow(req) }

func (g growOnly) Free(ptrs ...chunk.Pointer) error {
	return fmt.Errorf("%w: registry chain keeps its chunks", chunk.ErrIllegalState)
}
