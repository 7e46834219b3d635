package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/chunkkit/internal/mmfile"
)

// FileOptions configures a FileStore.
type FileOptions struct {
	// FlushMode selects the durability of Flush. Default: FlushAuto.
	FlushMode FlushMode

	// NoMmap forces the buffered backend even where mmap is available.
	NoMmap bool
}

func (o *FileOptions) norm() *FileOptions {
	var oo FileOptions
	if o != nil {
		oo = *o
	}
	if !mmfile.Supported {
		oo.NoMmap = true
	}
	return &oo
}

// FileStore is a Store backed by a file.
//
// Where supported the file is mapped read-write and grown with
// ftruncate + remap. Otherwise the contents are held in memory and dirty
// ranges are written back on Flush.
//
// The mapped file may be longer than Size while open; Close truncates it to
// Size.
type FileStore struct {
	f      *os.File
	path   string
	data   []byte // len(data) is the capacity
	mapped bool
	size   int64
	dt     tracker
	mode   FlushMode
	closed bool
}

// CreateFile creates (or truncates) the file at path.
func CreateFile(path string, opts *FileOptions) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return newFileStore(f, path, 0, opts.norm())
}

// OpenFile opens an existing file at path for reading and writing.
func OpenFile(path string, opts *FileOptions) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return newFileStore(f, path, st.Size(), opts.norm())
}

// OpenReadOnly maps the file at path read-only. Writes to the returned
// store fail with ErrReadOnly.
func OpenReadOnly(path string) (*MemStore, error) {
	data, cleanup, err := mmfile.Map(path)
	if err != nil {
		return nil, err
	}
	return newReadOnlyMem(data, cleanup), nil
}

func newFileStore(f *os.File, path string, size int64, o *FileOptions) (*FileStore, error) {
	fs := &FileStore{
		f:      f,
		path:   path,
		size:   size,
		dt:     newTracker(),
		mode:   o.FlushMode,
		mapped: !o.NoMmap,
	}
	if fs.mapped {
		data, err := mmfile.MapRW(f, size)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("store: mmap failed: %w", err)
		}
		fs.data = data
		return fs, nil
	}
	fs.data = make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), fs.data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	return fs, nil
}

// Path returns the file path the store was opened with.
func (fs *FileStore) Path() string { return fs.path }

// Mapped reports whether the store is memory-mapped.
func (fs *FileStore) Mapped() bool { return fs.mapped }

func (fs *FileStore) Capacity() int64 { return int64(len(fs.data)) }

func (fs *FileStore) Size() int64 { return fs.size }

// DirtyRanges returns the coalesced, page-aligned ranges the next Flush will write.
func (fs *FileStore) DirtyRanges() []Range { return fs.dt.coalesce() }

func (fs *FileStore) SetCapacity(n int64) error {
	if fs.closed {
		return ErrClosed
	}
	if n < fs.size {
		return fmt.Errorf("%w: capacity %d below size %d", ErrBadSize, n, fs.size)
	}
	old := int64(len(fs.data))
	if n == old {
		return nil
	}
	if !fs.mapped {
		data := make([]byte, n)
		copy(data, fs.data[:fs.size])
		fs.data = data
		return nil
	}

	// Dirty pages of the old mapping must reach the file before it goes away.
	if err := fs.syncMapped(context.Background()); err != nil {
		return err
	}
	if err := mmfile.Unmap(fs.data); err != nil {
		return fmt.Errorf("store: failed to unmap before resize: %w", err)
	}
	fs.data = nil

	if err := fs.f.Truncate(n); err != nil {
		// Try to remap old size to recover
		fs.data, _ = mmfile.MapRW(fs.f, old)
		return fmt.Errorf("store: failed to truncate file: %w", err)
	}
	data, err := mmfile.MapRW(fs.f, n)
	if err != nil {
		_ = fs.f.Truncate(old)
		fs.data, _ = mmfile.MapRW(fs.f, old)
		return fmt.Errorf("store: failed to remap after resize: %w", err)
	}
	fs.data = data
	return nil
}

func (fs *FileStore) SetSize(n int64) error {
	if fs.closed {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	if n > int64(len(fs.data)) {
		if err := fs.SetCapacity(alignPage(growCapacity(int64(len(fs.data)), n))); err != nil {
			return err
		}
	}
	if n < fs.size {
		clear(fs.data[n:fs.size])
		fs.dt.add(n, fs.size-n)
	}
	fs.size = n
	return nil
}

func alignPage(n int64) int64 {
	return (n + standardPageSize - 1) / standardPageSize * standardPageSize
}

func (fs *FileStore) ReadAt(p []byte, off int64) (int, error) {
	if fs.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	if off >= fs.size {
		return 0, io.EOF
	}
	n := copy(p, fs.data[off:fs.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (fs *FileStore) WriteAt(p []byte, off int64) (int, error) {
	if fs.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	if end := off + int64(len(p)); end > fs.size {
		if err := fs.SetSize(end); err != nil {
			return 0, err
		}
	}
	n := copy(fs.data[off:], p)
	fs.dt.add(off, int64(n))
	return n, nil
}

func (fs *FileStore) Open() (Cursor, error) {
	if fs.closed {
		return nil, ErrClosed
	}
	return newCursor(fs), nil
}

// Flush writes dirty ranges to disk and syncs the descriptor per FlushMode.
//
// The context can be used to cancel the flush. If cancelled during
// flushing, some ranges may have been flushed while others have not.
func (fs *FileStore) Flush(ctx context.Context) error {
	if fs.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fs.mapped {
		if err := fs.syncMapped(ctx); err != nil {
			return err
		}
	} else if err := fs.writeBack(ctx); err != nil {
		return err
	}

	if fs.mode == FlushDataOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fs.mapped {
		return mmfile.Datasync(int(fs.f.Fd()), fs.mode == FlushFull)
	}
	return fs.f.Sync()
}

func (fs *FileStore) syncMapped(ctx context.Context) error {
	for _, r := range fs.dt.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := mmfile.SyncRange(fs.data, int(r.Off), int(r.Len)); err != nil {
			return fmt.Errorf("store: msync [%d,+%d): %w", r.Off, r.Len, err)
		}
	}
	fs.dt.reset()
	return nil
}

func (fs *FileStore) writeBack(ctx context.Context) error {
	for _, r := range fs.dt.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Off >= fs.size {
			continue
		}
		end := min(r.Off+r.Len, fs.size)
		if _, err := fs.f.WriteAt(fs.data[r.Off:end], r.Off); err != nil {
			return fmt.Errorf("store: write back [%d,%d): %w", r.Off, end, err)
		}
	}
	fs.dt.reset()
	return fs.f.Truncate(fs.size)
}

// Close flushes, unmaps and truncates the file to Size.
func (fs *FileStore) Close() error {
	if fs.closed {
		return nil
	}
	flushErr := fs.Flush(context.Background())
	fs.closed = true

	var unmapErr error
	if fs.mapped {
		unmapErr = mmfile.Unmap(fs.data)
	}
	fs.data = nil
	truncErr := fs.f.Truncate(fs.size)
	closeErr := fs.f.Close()
	return errors.Join(flushErr, unmapErr, truncErr, closeErr)
}
