// Package alloc provides chunk allocation and the persisted free-chunk
// registry.
//
// # Overview
//
// An Allocator turns chunk.Request tickets into chunks. Freed chunks go to a
// free index and are handed out again before the store grows:
//
//	a, err := alloc.New(provider, nil)
//	if err != nil {
//	    return err
//	}
//	head, err := a.CreateRegistry()
//
//	c, err := a.Alloc(chunk.Req(128).WithTag(2))
//	...
//	err = a.Free(c.Ptr())
//
// # Free index
//
// The index keeps every free chunk three ways:
//
//   - a min-heap keyed on span for best fit
//   - an offset map for lookups and forward coalescing
//   - an end-offset map for backward coalescing
//
// Free merges the chunk with physically adjacent free chunks in both
// directions. Reuse splits a region when the remainder is at least
// Options.MinSplit bytes.
//
// # Registry
//
// The free set is persisted after every free and every reuse as a chunk
// chain (see registry.go for the layout). The registry chain grows by
// appending to the store and never releases its own chunks, so persisting
// it cannot recurse into reuse.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally.
package alloc
