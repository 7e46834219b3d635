package pack

import (
	"errors"

	"github.com/joshuapare/chunkkit/chunk"
)

// Refs is a RootWalker over pointer variables owned by the caller. Rewrite
// updates the variables in place; a variable listed twice is translated once.
type Refs []*chunk.Pointer

func (r Refs) Pointers() []chunk.Pointer {
	out := make([]chunk.Pointer, 0, len(r))
	for _, p := range r {
		out = append(out, *p)
	}
	return out
}

func (r Refs) Rewrite(remap Remap) error {
	done := make(map[*chunk.Pointer]struct{}, len(r))
	var errs []error
	for _, p := range r {
		if _, ok := done[p]; ok {
			continue
		}
		done[p] = struct{}{}
		np, err := remap.Lookup(*p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*p = np
	}
	return errors.Join(errs...)
}

// Func adapts a pair of functions to RootWalker.
type Func struct {
	List   func() []chunk.Pointer
	Update func(remap Remap) error
}

func (f Func) Pointers() []chunk.Pointer { return f.List() }

func (f Func) Rewrite(remap Remap) error { return f.Update(remap) }
