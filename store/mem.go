package store

import (
	"context"
	"fmt"
	"io"
)

// minMemCapacity is the smallest reservation a growing MemStore makes.
const minMemCapacity = 256

// MemStore is a Store backed by a byte slice.
type MemStore struct {
	data     []byte // len(data) is the capacity
	size     int64
	readOnly bool
	closed   bool
	release  func() error
}

// NewMem creates an empty MemStore with the given initial capacity.
func NewMem(capacity int64) *MemStore {
	if capacity < 0 {
		capacity = 0
	}
	return &MemStore{data: make([]byte, capacity)}
}

// NewMemFrom creates a MemStore holding a copy of b.
func NewMemFrom(b []byte) *MemStore {
	data := make([]byte, len(b))
	copy(data, b)
	return &MemStore{data: data, size: int64(len(b))}
}

// newReadOnlyMem wraps b without copying. Writes fail with ErrReadOnly.
func newReadOnlyMem(b []byte, release func() error) *MemStore {
	return &MemStore{data: b, size: int64(len(b)), readOnly: true, release: release}
}

// Bytes returns the logical contents. The slice aliases the store and is only
// valid until the next size change.
func (m *MemStore) Bytes() []byte { return m.data[:m.size] }

func (m *MemStore) Capacity() int64 { return int64(len(m.data)) }

func (m *MemStore) Size() int64 { return m.size }

func (m *MemStore) SetCapacity(n int64) error {
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if n < m.size {
		return fmt.Errorf("%w: capacity %d below size %d", ErrBadSize, n, m.size)
	}
	if n == int64(len(m.data)) {
		return nil
	}
	data := make([]byte, n)
	copy(data, m.data[:m.size])
	m.data = data
	return nil
}

func (m *MemStore) SetSize(n int64) error {
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	if n > int64(len(m.data)) {
		if err := m.SetCapacity(growCapacity(int64(len(m.data)), n)); err != nil {
			return err
		}
	}
	if n < m.size {
		clear(m.data[n:m.size])
	}
	m.size = n
	return nil
}

// growCapacity doubles cur until it covers need.
func growCapacity(cur, need int64) int64 {
	c := max(cur, minMemCapacity)
	for c < need {
		c *= 2
	}
	return c
}

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	if off >= m.size {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:m.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if m.readOnly {
		return 0, ErrReadOnly
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadOffset, off)
	}
	if end := off + int64(len(p)); end > m.size {
		if err := m.SetSize(end); err != nil {
			return 0, err
		}
	}
	return copy(m.data[off:], p), nil
}

func (m *MemStore) Open() (Cursor, error) {
	if m.closed {
		return nil, ErrClosed
	}
	return newCursor(m), nil
}

func (m *MemStore) Flush(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *MemStore) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.release != nil {
		return m.release()
	}
	return nil
}
