package alloc

import "errors"

var (
	// ErrDoubleFree indicates a free of a chunk that is already free.
	ErrDoubleFree = errors.New("alloc: chunk already free")

	// ErrGrowFail indicates the store could not be extended.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrRegistryChunk indicates an attempt to free the registry's own chain.
	ErrRegistryChunk = errors.New("alloc: chunk belongs to the free registry")

	// ErrNoRegistry indicates a registry operation before one was attached.
	ErrNoRegistry = errors.New("alloc: no free registry attached")
)
