// Package chain provides stream access to chunk chains.
//
// A chain is the sequence of chunks reached by following next pointers from
// a head chunk. A Cursor presents the used bytes of every chunk in that
// sequence as one io.ReadWriteSeeker:
//
//	m := chain.NewManager(provider, allocator, nil)
//	cur, err := m.Open(head)
//	if err != nil {
//	    return err
//	}
//	defer cur.Close()
//
//	if err := cur.WriteU32(42); err != nil {
//	    return err
//	}
//
// # Growth
//
// Writing past the last chunk's capacity asks the Allocator for a
// continuation of max(deficit, current chain capacity) bytes, capped by
// Options.MaxGrowth but never below the deficit. Chunks allocated with
// growth disabled fail instead with chunk.ErrIllegalState.
//
// # Sessions
//
// Every Open pushes a session onto the chain's stack. Sessions close in LIFO
// order; closing an open session that is not on top fails with
// chunk.ErrIllegalState and leaves the stack untouched.
//
// # Serialization primitives
//
// Cursor carries fixed-width helpers (ReadU8 through ReadU64, including the
// 24, 40 and 48 bit widths) and BitWriter/BitReader pack flags into whole
// bytes. Higher layers serialize through these and nothing else.
package chain
