package pack

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joshuapare/chunkkit/alloc"
	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/logger"
	"github.com/joshuapare/chunkkit/internal/width"
)

// RootWalker is implemented by every owner of pointers into the store.
type RootWalker interface {
	// Pointers lists the chain heads (or any chunk pointers) the owner holds.
	Pointers() []chunk.Pointer
	// Rewrite replaces every pointer the owner listed with its entry in
	// remap. It is called once per pack, so each held pointer must be
	// translated exactly once: a new offset may equal another chunk's old one.
	Rewrite(remap Remap) error
}

// Remap maps the old pointer of every live chunk to its new one.
type Remap map[chunk.Pointer]chunk.Pointer

// Lookup returns the new pointer for old. Null maps to Null.
func (m Remap) Lookup(old chunk.Pointer) (chunk.Pointer, error) {
	if old.IsNull() {
		return chunk.Null, nil
	}
	np, ok := m[old]
	if !ok {
		return chunk.Null, fmt.Errorf("%w: %s was not collected", chunk.ErrMalformedPointer, old)
	}
	return np, nil
}

// Options configures Pack. The zero value is usable.
type Options struct {
	// DataStart is the offset the first chunk moves to.
	// Default: alloc.DefaultDataStart.
	DataStart uint64

	// ShrinkCapacity lowers every growable chunk's capacity to its used
	// size. Fixed chunks always keep their capacity.
	ShrinkCapacity bool

	// Logger receives debug events. Default: logger.L.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}
	if oo.DataStart == 0 {
		oo.DataStart = alloc.DefaultDataStart
	}
	oo.Logger = logger.Or(oo.Logger)
	return &oo
}

// Report summarizes a pack run.
type Report struct {
	Live           int   // live chunks found from the roots
	Moved          int   // chunks whose offset changed
	Shrunk         int   // chunks whose capacity was lowered
	SizeBefore     int64 // store size before
	SizeAfter      int64 // store size after
	CapacityBefore int64
	CapacityAfter  int64

	// Remap maps every live chunk's old pointer to its new one.
	Remap Remap
}

// Reclaimed returns the bytes removed from the store.
func (r *Report) Reclaimed() int64 { return r.SizeBefore - r.SizeAfter }

// placement is the new position and header of one live chunk.
type placement struct {
	old *chunk.Chunk
	ptr chunk.Pointer
	hdr chunk.Header
}

// Pack compacts the store behind p.
//
// Every chunk reachable from the walkers' pointers is live; everything else,
// free chunks included, is dropped. Live chunks keep their relative order
// and are laid out without gaps from DataStart:
//
//  1. collect and sort live chunks by offset; nothing is written yet
//  2. compute every destination and rewritten next pointer
//  3. copy chunks in ascending order; a destination never passes its
//     source, so no unread source byte is overwritten
//  4. reset the provider, then hand the remap to every walker
//  5. shrink the store to the new end
//
// Walkers are only called once every chunk has been copied. A free
// registry must be discarded by the caller before and rewritten after.
//
// An error before the copy leaves the store untouched and the Report nil.
// Once the copy has finished the store stays compacted: the Report is
// returned together with any rewrite or truncation error, and walkers that
// failed are left holding stale pointers.
func Pack(p *chunk.Provider, walkers []RootWalker, opts *Options) (*Report, error) {
	o := opts.norm()
	st := p.Store()
	rep := &Report{SizeBefore: st.Size(), CapacityBefore: st.Capacity()}

	live := make(map[chunk.Pointer]*chunk.Chunk)
	for _, w := range walkers {
		for _, ptr := range w.Pointers() {
			if ptr.IsNull() {
				continue
			}
			chain, err := p.Walk(ptr)
			if err != nil {
				return nil, fmt.Errorf("pack: collect from %s: %w", ptr, err)
			}
			for _, c := range chain {
				live[c.Ptr()] = c
			}
		}
	}

	plan, err := place(live, o)
	if err != nil {
		return nil, err
	}
	rep.Live = len(plan)
	rep.Remap = make(Remap, len(plan))
	for _, pl := range plan {
		rep.Remap[pl.old.Ptr()] = pl.ptr
	}
	for i := range plan {
		h := &plan[i].hdr
		if h.Next.IsNull() {
			continue
		}
		np, ok := rep.Remap[h.Next]
		if !ok {
			return nil, fmt.Errorf("%w: %s links to %s outside the live set", chunk.ErrMalformedPointer, plan[i].old.Ptr(), h.Next)
		}
		h.Next = np
	}

	end := o.DataStart
	if n := len(plan); n > 0 {
		last := plan[n-1]
		end = uint64(last.ptr) + last.hdr.Span()
	}
	if err := copyAll(p, plan); err != nil {
		p.Reset()
		return nil, err
	}
	for _, pl := range plan {
		if pl.ptr != pl.old.Ptr() {
			rep.Moved++
		}
		if pl.hdr.Capacity < pl.old.Capacity() {
			rep.Shrunk++
		}
	}
	p.Reset()

	var errs []error
	for _, w := range walkers {
		if err := w.Rewrite(rep.Remap); err != nil {
			errs = append(errs, fmt.Errorf("pack: rewrite: %w", err))
		}
	}
	if err := st.SetSize(int64(end)); err != nil {
		errs = append(errs, fmt.Errorf("pack: truncate store: %w", err))
	} else if st.Capacity() > int64(end) {
		if err := st.SetCapacity(int64(end)); err != nil {
			errs = append(errs, fmt.Errorf("pack: shrink store: %w", err))
		}
	}
	rep.SizeAfter, rep.CapacityAfter = st.Size(), st.Capacity()
	if err := errors.Join(errs...); err != nil {
		o.Logger.Warn("pack finished with errors", "live", rep.Live, "err", err)
		return rep, err
	}
	o.Logger.Debug("pack done", "live", rep.Live, "moved", rep.Moved, "reclaimed", rep.Reclaimed())
	return rep, nil
}

// place computes destinations in ascending source order.
func place(live map[chunk.Pointer]*chunk.Chunk, o *Options) ([]placement, error) {
	chunks := make([]*chunk.Chunk, 0, len(live))
	for _, c := range live {
		chunks = append(chunks, c)
	}
	slices.SortFunc(chunks, func(a, b *chunk.Chunk) int {
		switch {
		case a.Ptr() < b.Ptr():
			return -1
		case a.Ptr() > b.Ptr():
			return 1
		}
		return 0
	})

	plan := make([]placement, len(chunks))
	next := o.DataStart
	var prevEnd uint64
	for i, c := range chunks {
		if uint64(c.Ptr()) < o.DataStart {
			return nil, fmt.Errorf("%w: %s lies before the data start %d", chunk.ErrMalformedPointer, c.Ptr(), o.DataStart)
		}
		if uint64(c.Ptr()) < prevEnd {
			return nil, fmt.Errorf("%w: %s overlaps the previous live chunk", chunk.ErrMalformedPointer, c.Ptr())
		}
		prevEnd = c.End()

		h := c.Header()
		if o.ShrinkCapacity && !h.Fixed {
			h.Capacity = h.Size
			h.BodyWidth = width.For(h.Size)
		}
		plan[i] = placement{old: c, ptr: chunk.Pointer(next), hdr: h}
		next += h.Span()
	}
	return plan, nil
}

// copyAll moves each chunk to its destination: new header, used body bytes,
// then zeroed slack.
func copyAll(p *chunk.Provider, plan []placement) error {
	st := p.Store()
	var zero [4096]byte
	for _, pl := range plan {
		body := make([]byte, pl.old.Size())
		if _, err := pl.old.ReadBody(body, 0); err != nil {
			return fmt.Errorf("pack: read %s: %w", pl.old.Ptr(), err)
		}
		raw := make([]byte, pl.hdr.Len(), pl.hdr.Len()+len(body))
		if err := pl.hdr.Encode(raw); err != nil {
			return fmt.Errorf("pack: header for %s: %w", pl.old.Ptr(), err)
		}
		raw = append(raw, body...)
		if _, err := st.WriteAt(raw, int64(pl.ptr)); err != nil {
			return fmt.Errorf("pack: write %s to %s: %w", pl.old.Ptr(), pl.ptr, err)
		}
		off := int64(pl.ptr) + int64(len(raw))
		for slack := pl.hdr.Capacity - pl.hdr.Size; slack > 0; {
			n := min(slack, uint64(len(zero)))
			if _, err := st.WriteAt(zero[:n], off); err != nil {
				return fmt.Errorf("pack: clear slack of %s: %w", pl.ptr, err)
			}
			off += int64(n)
			slack -= n
		}
	}
	return nil
}
