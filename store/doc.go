// Package store provides the flat, growable byte containers that chunks live in.
//
// # Overview
//
// A Store owns raw bytes and exposes a logical size (the bytes in use) and a
// capacity (the bytes reserved). Two implementations exist:
//
//   - MemStore: a growable in-memory buffer
//   - FileStore: a file, memory-mapped read-write where the platform allows it
//
// Both implement the same contract, so the chunk layers above never assume a
// specific transport:
//
//	st, err := store.CreateFile("/tmp/data.chk", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	cur, err := st.Open()
//	if err != nil {
//	    return err
//	}
//	defer cur.Close()
//	_, err = cur.Write([]byte("hello"))
//
// # Dirty Tracking
//
// FileStore records every written range. Flush page-aligns and coalesces them,
// msyncs each range and then syncs the file descriptor according to the
// FlushMode.
//
// # Thread Safety
//
// Stores are not thread-safe. Callers must synchronize access externally.
package store
