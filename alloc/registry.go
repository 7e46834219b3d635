package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/width"
)

// Registry layout, written through chain I/O at the registry head:
//
//	[width code: 1][count: w][ptr: w]...
//
// w is the smallest width holding both the count and the largest pointer.
// Only pointers are stored; sizes come from the free chunks' own headers.

// CreateRegistry allocates a new registry head at the end of the store,
// attaches it and persists the current free set.
func (a *Allocator) CreateRegistry() (chunk.Pointer, error) {
	c, err := a.grow(chunk.Req(a.opts.RegistryCapacity))
	if err != nil {
		return chunk.Null, err
	}
	a.regHead = c.Ptr()
	if err := a.persist(); err != nil {
		return chunk.Null, err
	}
	return c.Ptr(), nil
}

// AttachRegistry loads the registry stored at head and replaces the free
// index with its entries.
func (a *Allocator) AttachRegistry(head chunk.Pointer) error {
	ptrs, err := a.readRegistry(head)
	if err != nil {
		return err
	}
	a.free.reset()
	for _, ptr := range ptrs {
		if r, ok := a.free.covering(uint64(ptr)); ok {
			return fmt.Errorf("%w: free entry %s overlaps %s", chunk.ErrMalformedPointer, ptr, chunk.Pointer(r.off))
		}
		c, err := a.p.Get(ptr)
		if err != nil {
			return fmt.Errorf("alloc: registry entry: %w", err)
		}
		a.free.insert(uint64(ptr), c.Span(), c.Header().NextWidth)
	}
	a.regHead = head
	a.log.Debug("alloc registry attached", "head", uint64(head), "entries", len(ptrs))
	return nil
}

// RegistryHead returns the head of the attached registry chain, or Null.
func (a *Allocator) RegistryHead() chunk.Pointer { return a.regHead }

// MoveRegistry records that the registry chain now starts at head without
// reading it. Compaction calls it after relocating the chain.
func (a *Allocator) MoveRegistry(head chunk.Pointer) error {
	if a.regHead.IsNull() {
		return ErrNoRegistry
	}
	if err := a.regChains.Reset(); err != nil {
		return err
	}
	a.regHead = head
	return nil
}

// Clear drops every free entry and persists the empty registry.
func (a *Allocator) Clear() error {
	a.free.reset()
	return a.persist()
}

// Persist writes the free set to the registry chain. It is a no-op when no
// registry is attached.
func (a *Allocator) Persist() error { return a.persist() }

func (a *Allocator) persist() error {
	if a.regHead.IsNull() {
		return nil
	}
	ptrs := a.free.pointers()
	cur, err := a.regChains.Open(a.regHead)
	if err != nil {
		return fmt.Errorf("alloc: open registry: %w", err)
	}
	if err := writeRegistry(cur, ptrs); err != nil {
		_ = cur.Close()
		return fmt.Errorf("alloc: persist registry: %w", err)
	}
	if err := cur.Trim(); err != nil {
		_ = cur.Close()
		return fmt.Errorf("alloc: persist registry: %w", err)
	}
	return cur.Close()
}

func (a *Allocator) readRegistry(head chunk.Pointer) ([]chunk.Pointer, error) {
	cur, err := a.regChains.Open(head)
	if err != nil {
		return nil, fmt.Errorf("alloc: open registry: %w", err)
	}
	defer cur.Close()
	if cur.Size() == 0 {
		return nil, nil
	}
	code, err := cur.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("alloc: read registry: %w", err)
	}
	w, err := width.FromCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: registry: %w", chunk.ErrMalformedPointer, err)
	}
	count, err := cur.ReadWidth(w)
	if err != nil {
		return nil, fmt.Errorf("alloc: read registry: %w", err)
	}
	if count*uint64(w) > cur.Size() {
		return nil, fmt.Errorf("%w: registry claims %d entries in %d bytes", chunk.ErrMalformedPointer, count, cur.Size())
	}
	ptrs := make([]chunk.Pointer, 0, count)
	for range count {
		v, err := cur.ReadWidth(w)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("alloc: read registry: %w", err)
		}
		ptrs = append(ptrs, chunk.Pointer(v))
	}
	return ptrs, nil
}

type registryWriter interface {
	WriteU8(uint8) error
	WriteWidth(width.Width, uint64) error
}

func writeRegistry(w registryWriter, ptrs []chunk.Pointer) error {
	hi := uint64(len(ptrs))
	for _, p := range ptrs {
		hi = max(hi, uint64(p))
	}
	wd := width.For(hi)
	if err := w.WriteU8(wd.Code()); err != nil {
		return err
	}
	if err := w.WriteWidth(wd, uint64(len(ptrs))); err != nil {
		return err
	}
	for _, p := range ptrs {
		if err := w.WriteWidth(wd, uint64(p)); err != nil {
			return err
		}
	}
	return nil
}
