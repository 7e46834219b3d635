// Package verify checks the structural integrity of a chunk store.
//
// Validate scans the data region twice:
//
//   - physically, from the data start to the store end, checking that chunk
//     headers decode and that chunks tile the region without gaps
//   - logically, from a set of root pointers along each chain's next links
//
// Every chunk must then be either reachable from a root or listed as free.
// Problems are collected rather than returned on the first hit:
//
//	rep := verify.Validate(provider, roots, freePtrs, &verify.Options{DataStart: 8})
//	for _, issue := range rep.Issues {
//	    fmt.Println(issue)
//	}
//	if errors.Is(rep.Err(), chunk.ErrUnreferencedChunk) {
//	    // leaked chunks
//	}
//
// Each issue is a *ValidationError carrying a category, the offset and,
// where one applies, the sentinel error from package chunk.
package verify
