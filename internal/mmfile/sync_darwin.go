//go:build darwin

package mmfile

import "golang.org/x/sys/unix"

// SyncRange flushes the mapping to disk.
//
// On macOS, msync() requires the address to match the original mmap() address.
// Sub-slices have a different base pointer, so the whole region is synced; the
// kernel only writes pages that are actually dirty.
func SyncRange(data []byte, _, _ int) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// Datasync performs a file descriptor sync, using F_FULLFSYNC when full is set.
func Datasync(fd int, full bool) error {
	if full {
		_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
		return err
	}
	// macOS doesn't have fdatasync, use fsync
	return unix.Fsync(fd)
}
