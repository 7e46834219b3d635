package cluster

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/joshuapare/chunkkit/chain"
	"github.com/joshuapare/chunkkit/chunk"
)

// Roots table layout, written through chain I/O at the roots head:
//
//	[count: u32] then per root, sorted by name:
//	[name length: u16][name: UTF-8, NFC][pointer: u64]

// ErrNoRoot is returned when a named root does not exist.
var ErrNoRoot = errors.New("cluster: no such root")

// canonicalName returns the NFC form of name.
func canonicalName(name string) (string, error) {
	n := norm.NFC.String(name)
	if n == "" {
		return "", errors.New("cluster: empty root name")
	}
	if len(n) > math.MaxUint16 {
		return "", fmt.Errorf("cluster: root name too long (%d bytes)", len(n))
	}
	return n, nil
}

// SetRoot binds name to ptr and persists the roots table. Names are
// compared after NFC normalisation.
func (c *Cluster) SetRoot(name string, ptr chunk.Pointer) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	n, err := canonicalName(name)
	if err != nil {
		return err
	}
	if ptr.IsNull() {
		return fmt.Errorf("%w: root %q set to null", chunk.ErrMalformedPointer, n)
	}
	if _, err := c.p.Get(ptr); err != nil {
		return fmt.Errorf("cluster: root %q: %w", n, err)
	}
	prev, had := c.roots[n]
	c.roots[n] = ptr
	if err := c.saveRoots(); err != nil {
		if had {
			c.roots[n] = prev
		} else {
			delete(c.roots, n)
		}
		return err
	}
	return nil
}

// Root returns the pointer bound to name.
func (c *Cluster) Root(name string) (chunk.Pointer, bool) {
	ptr, ok := c.roots[norm.NFC.String(name)]
	return ptr, ok
}

// DeleteRoot removes name from the roots table. The chain it pointed to is
// left alone.
func (c *Cluster) DeleteRoot(name string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	n := norm.NFC.String(name)
	ptr, ok := c.roots[n]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoRoot, n)
	}
	delete(c.roots, n)
	if err := c.saveRoots(); err != nil {
		c.roots[n] = ptr
		return err
	}
	return nil
}

// Roots returns the root names in sorted order.
func (c *Cluster) Roots() []string {
	return slices.Sorted(maps.Keys(c.roots))
}

func (c *Cluster) saveRoots() error {
	cur, err := c.chains.Open(c.hdr.RootsHead)
	if err != nil {
		return fmt.Errorf("cluster: open roots table: %w", err)
	}
	werr := c.writeRoots(cur)
	if werr == nil {
		werr = cur.Trim()
	}
	return errors.Join(werr, cur.Close())
}

func (c *Cluster) writeRoots(w *chain.Cursor) error {
	if err := w.WriteU32(uint32(len(c.roots))); err != nil {
		return err
	}
	for _, name := range c.Roots() {
		if err := w.WriteU16(uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if err := w.WriteU64(uint64(c.roots[name])); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cluster) loadRoots() error {
	cur, err := c.chains.Open(c.hdr.RootsHead)
	if err != nil {
		return fmt.Errorf("cluster: open roots table: %w", err)
	}
	roots, rerr := readRoots(cur)
	if err := errors.Join(rerr, cur.Close()); err != nil {
		return fmt.Errorf("cluster: read roots table: %w", err)
	}
	c.roots = roots
	return nil
}

func readRoots(r *chain.Cursor) (map[string]chunk.Pointer, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	roots := make(map[string]chunk.Pointer, min(count, 1024))
	for i := range count {
		n, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ptr, err := r.ReadU64()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		roots[string(name)] = chunk.Pointer(ptr)
	}
	return roots, nil
}
