package alloc

import (
	"log/slog"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/logger"
)

const (
	// DefaultDataStart is the first offset chunks may occupy in a bare store.
	DefaultDataStart = 8

	// DefaultMinSplit is the smallest remainder split off a reused region.
	DefaultMinSplit = chunk.MinHeaderSize + 12

	// DefaultRegistryCapacity is the body size of a new registry head.
	DefaultRegistryCapacity = 64
)

// Options configures an Allocator. The zero value is usable.
type Options struct {
	// DataStart is the first store offset chunks may occupy; bytes before it
	// belong to the caller. A shorter store is extended to it.
	// Default: DefaultDataStart.
	DataStart uint64

	// MinSplit is the smallest remainder, in bytes including its header,
	// that is split off a reused free region into its own free chunk.
	// Smaller remainders stay with the allocation as extra capacity.
	// Values below chunk.MinHeaderSize are raised to it.
	// Default: DefaultMinSplit.
	MinSplit uint64

	// RegistryCapacity is the body size of a registry head created by
	// CreateRegistry. Default: DefaultRegistryCapacity.
	RegistryCapacity uint64

	// Logger receives debug events. Default: logger.L.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}
	if oo.DataStart == 0 {
		oo.DataStart = DefaultDataStart
	}
	if oo.MinSplit == 0 {
		oo.MinSplit = DefaultMinSplit
	}
	oo.MinSplit = max(oo.MinSplit, chunk.MinHeaderSize)
	if oo.RegistryCapacity == 0 {
		oo.RegistryCapacity = DefaultRegistryCapacity
	}
	oo.Logger = logger.Or(oo.Logger)
	return &oo
}
