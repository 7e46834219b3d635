package store

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrClosed indicates an operation on a closed store or cursor.
	ErrClosed = errors.New("store: closed")

	// ErrReadOnly indicates a write to a read-only store.
	ErrReadOnly = errors.New("store: read-only")

	// ErrBadSize indicates a negative size or a capacity below the logical size.
	ErrBadSize = errors.New("store: bad size")

	// ErrBadOffset indicates a negative offset.
	ErrBadOffset = errors.New("store: bad offset")
)

// Store is a growable and shrinkable byte container.
//
// ReadAt past Size returns io.EOF. WriteAt past Size extends Size, growing
// Capacity as needed; the gap is zero-filled.
type Store interface {
	io.ReaderAt
	io.WriterAt

	// Capacity returns the number of bytes reserved.
	Capacity() int64
	// SetCapacity reserves exactly n bytes. n must not be below Size.
	SetCapacity(n int64) error

	// Size returns the logical number of bytes in use.
	Size() int64
	// SetSize changes the logical size. Growing zero-fills, shrinking discards.
	SetSize(n int64) error

	// Open returns a new seekable cursor positioned at 0.
	Open() (Cursor, error)

	// Flush persists pending writes.
	Flush(ctx context.Context) error

	// Close flushes and releases the store.
	Close() error
}

// Cursor is a seekable read/write view over a Store.
type Cursor interface {
	io.ReadWriteSeeker

	// Pos returns the current position.
	Pos() int64
	// FillZero writes n zero bytes at the current position.
	FillZero(n int64) error
	// Flush flushes the underlying store.
	Flush() error
	// Close releases the cursor. The store stays open.
	Close() error
}
