package chain

import (
	"log/slog"

	"github.com/joshuapare/chunkkit/internal/logger"
)

// DefaultMaxGrowth caps the size of a single continuation chunk.
const DefaultMaxGrowth = 1 << 20

// Options configures a Manager. The zero value is usable.
type Options struct {
	// MaxGrowth caps a continuation's capacity. A continuation is never
	// smaller than the pending write, so the cap only limits the doubling.
	// Default: DefaultMaxGrowth.
	MaxGrowth uint64

	// RetainTail keeps chunks past the logical end on truncate, with their
	// used size set to zero, instead of releasing them to the allocator.
	RetainTail bool

	// Logger receives debug events. Default: logger.L.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}
	if oo.MaxGrowth == 0 {
		oo.MaxGrowth = DefaultMaxGrowth
	}
	oo.Logger = logger.Or(oo.Logger)
	return &oo
}
