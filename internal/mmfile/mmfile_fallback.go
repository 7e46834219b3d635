//go:build !linux && !darwin

// Package mmfile provides platform-specific helpers for memory-mapping store files.
package mmfile

import (
	"errors"
	"os"
)

// Supported reports whether read-write mappings are available on this platform.
const Supported = false

// ErrUnsupported is returned by MapRW where mmap is not available.
var ErrUnsupported = errors.New("mmfile: read-write mapping not supported on this platform")

// Map reads the entire file when mmap is not available.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}

// MapRW is not available on this platform.
func MapRW(_ *os.File, _ int64) ([]byte, error) { return nil, ErrUnsupported }

// Unmap is a no-op on this platform.
func Unmap(_ []byte) error { return nil }

// SyncRange is a no-op on this platform.
func SyncRange(_ []byte, _, _ int) error { return nil }

// Datasync syncs the file through the os package.
func Datasync(_ int, _ bool) error { return nil }
