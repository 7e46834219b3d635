package alloc

import (
	"container/heap"
	"slices"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/width"
)

// freeRegion is one free chunk in the index. span covers header and body;
// nw is the next width of the free chunk's header, kept on reuse.
type freeRegion struct {
	off       uint64
	span      uint64
	nw        width.Width
	heapIndex int
}

func (r *freeRegion) end() uint64 { return r.off + r.span }

// regionHeap is a min-heap keyed on span. heap[0] is the smallest free region.
type regionHeap []*freeRegion

func (h *regionHeap) Len() int { return len(*h) }

func (h *regionHeap) Less(i, j int) bool { return lessRegion((*h)[i], (*h)[j]) }

func lessRegion(a, b *freeRegion) bool {
	if a.span != b.span {
		return a.span < b.span
	}
	return a.off < b.off
}

func (h *regionHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *regionHeap) Push(x any) {
	r := x.(*freeRegion) //nolint:errcheck // heap.Interface contract guarantees type
	r.heapIndex = len(*h)
	*h = append(*h, r)
}

func (h *regionHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	r.heapIndex = -1
	*h = old[:n-1]
	return r
}

// freeIndex tracks free regions three ways:
//   - heap by span for best fit
//   - byOff for O(1) lookup and forward coalescing
//   - endIdx (end offset -> start offset) for backward coalescing
type freeIndex struct {
	heap   regionHeap
	byOff  map[uint64]*freeRegion
	endIdx map[uint64]uint64
	bytes  uint64
}

func newFreeIndex() *freeIndex {
	return &freeIndex{
		byOff:  make(map[uint64]*freeRegion, 64),
		endIdx: make(map[uint64]uint64, 64),
	}
}

func (fi *freeIndex) len() int { return len(fi.byOff) }

func (fi *freeIndex) insert(off, span uint64, nw width.Width) {
	r := &freeRegion{off: off, span: span, nw: nw}
	heap.Push(&fi.heap, r)
	fi.byOff[off] = r
	fi.endIdx[off+span] = off
	fi.bytes += span
}

func (fi *freeIndex) remove(off uint64) (*freeRegion, bool) {
	r, ok := fi.byOff[off]
	if !ok {
		return nil, false
	}
	heap.Remove(&fi.heap, r.heapIndex)
	delete(fi.byOff, off)
	delete(fi.endIdx, r.end())
	fi.bytes -= r.span
	return r, true
}

// endingAt returns the region whose end is exactly off.
func (fi *freeIndex) endingAt(off uint64) (*freeRegion, bool) {
	start, ok := fi.endIdx[off]
	if !ok {
		return nil, false
	}
	return fi.byOff[start], true
}

// covering returns the region containing off, if any.
func (fi *freeIndex) covering(off uint64) (*freeRegion, bool) {
	if r, ok := fi.byOff[off]; ok {
		return r, true
	}
	for _, r := range fi.byOff {
		if off >= r.off && off < r.end() {
			return r, true
		}
	}
	return nil, false
}

// bestFit returns the smallest region for which fits reports true.
func (fi *freeIndex) bestFit(fits func(*freeRegion) bool) (*freeRegion, bool) {
	if len(fi.heap) == 0 {
		return nil, false
	}
	// heap[0] is the smallest region overall; if it fits nothing smaller exists
	if fits(fi.heap[0]) {
		return fi.heap[0], true
	}
	var best *freeRegion
	for _, r := range fi.heap[1:] {
		if !fits(r) {
			continue
		}
		if best == nil || lessRegion(r, best) {
			best = r
		}
	}
	return best, best != nil
}

// ascending returns the regions ordered by offset.
func (fi *freeIndex) ascending() []*freeRegion {
	out := make([]*freeRegion, 0, len(fi.byOff))
	for _, r := range fi.byOff {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *freeRegion) int {
		switch {
		case a.off < b.off:
			return -1
		case a.off > b.off:
			return 1
		}
		return 0
	})
	return out
}

func (fi *freeIndex) pointers() []chunk.Pointer {
	regions := fi.ascending()
	out := make([]chunk.Pointer, len(regions))
	for i, r := range regions {
		out[i] = chunk.Pointer(r.off)
	}
	return out
}

func (fi *freeIndex) reset() {
	fi.heap = fi.heap[:0]
	clear(fi.byOff)
	clear(fi.endIdx)
	fi.bytes = 0
}
