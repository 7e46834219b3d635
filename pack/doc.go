// Package pack compacts a chunk store.
//
// Pack keeps only the chunks reachable from a set of RootWalkers, moves them
// to the front of the store in their original order and truncates the rest:
//
//	head := someChainHead
//	rep, err := pack.Pack(provider, []pack.RootWalker{pack.Refs{&head}}, nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(rep.Reclaimed(), "bytes reclaimed")
//
// Free chunks are never live, so the caller owns the free registry around a
// pack: discard the in-memory free index first, then clear and rewrite the
// registry at its new location afterwards. Every chunk.Chunk handle taken
// before the pack is stale once it returns.
package pack
