package chunk

import (
	"errors"

	"github.com/joshuapare/chunkkit/internal/width"
)

var (
	// ErrMalformedPointer indicates a pointer out of store bounds or one that
	// references an invalid header.
	ErrMalformedPointer = errors.New("chunk: malformed pointer")

	// ErrDesyncedCache indicates a cached header disagrees with the store,
	// which means the store was mutated out of band.
	ErrDesyncedCache = errors.New("chunk: desynced cache")

	// ErrBitDepthOutOfSpace indicates a value does not fit the width chosen to store it.
	ErrBitDepthOutOfSpace = width.ErrOutOfSpace

	// ErrIllegalState indicates caller misuse: session ordering violations,
	// writes past a fixed chunk, sizes beyond capacity.
	ErrIllegalState = errors.New("chunk: illegal state")

	// ErrUnreferencedChunk is reported by validation for a chunk that has no
	// owner and no free-registry entry.
	ErrUnreferencedChunk = errors.New("chunk: unreferenced chunk")
)
