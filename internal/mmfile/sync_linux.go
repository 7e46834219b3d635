//go:build linux

package mmfile

import "golang.org/x/sys/unix"

// SyncRange flushes data[off:off+n] of a mapping to disk.
//
// On Linux msync() handles sub-slices correctly, so only the dirty range is written.
func SyncRange(data []byte, off, n int) error {
	if n <= 0 || off >= len(data) {
		return nil
	}
	end := min(off+n, len(data))
	return unix.Msync(data[off:end], unix.MS_SYNC)
}

// Datasync performs a file descriptor sync.
// The full parameter is ignored on Linux; fdatasync() is sufficient.
func Datasync(fd int, _ bool) error {
	return unix.Fdatasync(fd)
}
