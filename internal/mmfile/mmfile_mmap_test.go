//go:build linux || darwin

package mmfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	want := []byte{0xde, 0xad, 0xbe, 0xef, 0x42}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	data, cleanup, err := Map(path)
	require.NoError(t, err)
	require.Equal(t, want, data)
	require.NoError(t, cleanup())
	// double cleanup is tolerated
	require.NoError(t, cleanup())
}

func TestMap_ZeroLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	data, cleanup, err := Map(path)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NotNil(t, cleanup)
	require.NoError(t, cleanup())
}

func TestMapRW_WritesReachFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(4096))

	data, err := MapRW(f, 4096)
	require.NoError(t, err)
	require.Len(t, data, 4096)

	copy(data[100:], "chunk")
	require.NoError(t, SyncRange(data, 0, 4096))
	require.NoError(t, Datasync(int(f.Fd()), false))
	require.NoError(t, Unmap(data))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "chunk", string(onDisk[100:105]))
}

func TestMapRW_ZeroSize(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "zero")
	require.NoError(t, err)
	defer f.Close()

	data, err := MapRW(f, 0)
	require.NoError(t, err)
	require.Nil(t, data)
	require.NoError(t, Unmap(data))
}
