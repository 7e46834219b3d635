// Package cluster ties the engine together over one store.
//
// A cluster store starts with a 48-byte header (see header.go) naming two
// bootstrap chunks: the roots table and the free registry. Everything else
// is chains reached from named roots:
//
//	c, err := cluster.CreateFile("data.chk", nil)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	cur, err := c.NewChain(chunk.Req(256))
//	if err != nil {
//	    return err
//	}
//	_, err = cur.Write(payload)
//	err = errors.Join(err, cur.Close())
//	err = errors.Join(err, c.SetRoot("settings", cur.Head()))
//
// Root names are stored in Unicode NFC, so "é" written precomposed or
// decomposed names the same root.
//
// Pack compacts the store: everything reachable from the named roots, the
// bootstrap chunks and any extra pack.RootWalker survives, and the free
// registry is emptied. Validate reports chunks that are neither reachable
// nor free.
//
// # Thread Safety
//
// Cluster instances are not thread-safe. Callers must synchronize access
// externally.
package cluster
