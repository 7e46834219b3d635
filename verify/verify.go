package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/logger"
)

// Issue categories.
const (
	TypeTiling       = "Tiling"
	TypeBoundary     = "Boundary"
	TypeLoop         = "Loop"
	TypeUnreferenced = "Unreferenced"
	TypeDoubleOwned  = "DoubleOwned"
	TypeDuplicate    = "DuplicateFree"
)

// ValidationError describes one problem found in a store.
type ValidationError struct {
	Type    string
	Message string
	Offset  int64 // -1 if N/A
	Details map[string]any
	Err     error // sentinel, if any
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Options configures Validate.
type Options struct {
	// DataStart is the offset of the first chunk. Required.
	DataStart uint64

	// Logger receives one debug line per issue. Default: logger.L.
	Logger *slog.Logger
}

// Report is the result of Validate.
type Report struct {
	Chunks    int // chunks found by the physical scan
	Live      int // chunks reachable from the roots
	Free      int
	LiveBytes uint64
	FreeBytes uint64
	Issues    []*ValidationError
}

// OK reports whether no issue was found.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

// Err joins every issue, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Issues))
	for i, e := range r.Issues {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r *Report) add(e *ValidationError) { r.Issues = append(r.Issues, e) }

// Validate checks the chunk structure behind p.
//
// The data region is scanned physically: chunks must tile it from DataStart
// to the store end. Chains are then followed from roots. Every chunk must
// be exactly one of live (reachable) or free (listed in free); a chunk that
// is neither is reported with chunk.ErrUnreferencedChunk. Pointers that do
// not land on a chunk boundary are reported as well.
//
// Validate reads headers without touching the provider's cache.
func Validate(p *chunk.Provider, roots, free []chunk.Pointer, opts *Options) *Report {
	var o Options
	if opts != nil {
		o = *opts
	}
	log := logger.Or(o.Logger)
	rep := &Report{}

	tiles := scan(p, o.DataStart, rep)
	rep.Chunks = len(tiles.starts)

	live := make(map[chunk.Pointer]struct{})
	for _, root := range roots {
		if root.IsNull() {
			continue
		}
		walk(root, tiles, live, rep)
	}
	rep.Live = len(live)
	for ptr := range live {
		rep.LiveBytes += tiles.spans[ptr]
	}

	freed := make(map[chunk.Pointer]struct{}, len(free))
	for _, ptr := range free {
		if !tiles.boundary(ptr, rep, "free entry") {
			continue
		}
		if _, dup := freed[ptr]; dup {
			rep.add(&ValidationError{Type: TypeDuplicate, Offset: int64(ptr), Message: "listed twice in the free registry"})
			continue
		}
		freed[ptr] = struct{}{}
		if _, ok := live[ptr]; ok {
			rep.add(&ValidationError{Type: TypeDoubleOwned, Offset: int64(ptr), Message: "chunk is both reachable and free"})
		}
		rep.FreeBytes += tiles.spans[ptr]
	}
	rep.Free = len(freed)

	for _, start := range tiles.starts {
		ptr := chunk.Pointer(start)
		_, isLive := live[ptr]
		_, isFree := freed[ptr]
		if !isLive && !isFree {
			rep.add(&ValidationError{
				Type:    TypeUnreferenced,
				Offset:  int64(start),
				Message: "chunk has no owner and no free entry",
				Details: map[string]any{"span": tiles.spans[ptr]},
				Err:     chunk.ErrUnreferencedChunk,
			})
		}
	}

	for _, e := range rep.Issues {
		log.Debug("verify issue", "type", e.Type, "offset", e.Offset, "msg", e.Message)
	}
	return rep
}

// tiling is the result of the physical scan.
type tiling struct {
	starts []uint64 // ascending
	spans  map[chunk.Pointer]uint64
	next   map[chunk.Pointer]chunk.Pointer
}

func scan(p *chunk.Provider, start uint64, rep *Report) *tiling {
	t := &tiling{spans: make(map[chunk.Pointer]uint64), next: make(map[chunk.Pointer]chunk.Pointer)}
	end := uint64(p.Store().Size())
	if start > end {
		rep.add(&ValidationError{Type: TypeTiling, Offset: -1, Message: fmt.Sprintf("store size %d is below the data start %d", end, start)})
		return t
	}
	for off := start; off < end; {
		h, err := p.Load(chunk.Pointer(off))
		if err != nil {
			rep.add(&ValidationError{
				Type:    TypeTiling,
				Offset:  int64(off),
				Message: "no valid chunk header; scan stopped",
				Details: map[string]any{"remaining": end - off},
				Err:     err,
			})
			return t
		}
		t.starts = append(t.starts, off)
		t.spans[chunk.Pointer(off)] = h.Span()
		t.next[chunk.Pointer(off)] = h.Next
		off += h.Span()
	}
	return t
}

// boundary reports whether ptr starts a scanned chunk, recording an issue
// when it does not.
func (t *tiling) boundary(ptr chunk.Pointer, rep *Report, what string) bool {
	if _, ok := t.spans[ptr]; ok {
		return true
	}
	msg := fmt.Sprintf("%s does not start a chunk", what)
	i := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] > uint64(ptr) })
	if i > 0 {
		owner := t.starts[i-1]
		if uint64(ptr) < owner+t.spans[chunk.Pointer(owner)] {
			msg = fmt.Sprintf("%s lies inside chunk %s", what, chunk.Pointer(owner))
		}
	}
	rep.add(&ValidationError{Type: TypeBoundary, Offset: int64(ptr), Message: msg, Err: chunk.ErrMalformedPointer})
	return false
}

func walk(head chunk.Pointer, t *tiling, live map[chunk.Pointer]struct{}, rep *Report) {
	seen := make(map[chunk.Pointer]struct{})
	what := "root"
	for ptr := head; !ptr.IsNull(); ptr = t.next[ptr] {
		if !t.boundary(ptr, rep, what) {
			return
		}
		if _, ok := seen[ptr]; ok {
			rep.add(&ValidationError{Type: TypeLoop, Offset: int64(ptr), Message: fmt.Sprintf("chain from %s loops", head)})
			return
		}
		seen[ptr] = struct{}{}
		live[ptr] = struct{}{}
		what = "next pointer"
	}
}
