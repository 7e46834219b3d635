package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// storeFactories builds every Store implementation for contract tests.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	n := 0
	file := func(opts *FileOptions) func() Store {
		return func() Store {
			n++
			fs, err := CreateFile(filepath.Join(dir, "store"+string(rune('a'+n))), opts)
			require.NoError(t, err)
			t.Cleanup(func() { _ = fs.Close() })
			return fs
		}
	}
	return map[string]func() Store{
		"mem":      func() Store { return NewMem(0) },
		"file":     file(nil),
		"buffered": file(&FileOptions{NoMmap: true}),
	}
}

func TestStore_Contract(t *testing.T) {
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			st := mk()
			require.Equal(t, int64(0), st.Size())

			// WriteAt past size extends and zero-fills the gap
			n, err := st.WriteAt([]byte{1, 2, 3}, 10)
			require.NoError(t, err)
			require.Equal(t, 3, n)
			require.Equal(t, int64(13), st.Size())
			require.GreaterOrEqual(t, st.Capacity(), st.Size())

			got := make([]byte, 13)
			n, err = st.ReadAt(got, 0)
			require.NoError(t, err)
			require.Equal(t, 13, n)
			require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3}, got)

			// reads past the end report EOF
			n, err = st.ReadAt(make([]byte, 4), 11)
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, 2, n)

			// shrink discards, regrow reads zeros
			require.NoError(t, st.SetSize(11))
			require.NoError(t, st.SetSize(13))
			_, err = st.ReadAt(got[:2], 11)
			require.NoError(t, err)
			require.Equal(t, []byte{0, 0}, got[:2])

			// capacity cannot drop below size
			require.ErrorIs(t, st.SetCapacity(5), ErrBadSize)
			require.NoError(t, st.SetCapacity(13))
			require.Equal(t, int64(13), st.Capacity())

			require.NoError(t, st.Flush(context.Background()))
		})
	}
}

func TestCursor_ReadWriteSeek(t *testing.T) {
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			st := mk()
			cur, err := st.Open()
			require.NoError(t, err)

			_, err = cur.Write([]byte("hello"))
			require.NoError(t, err)
			require.NoError(t, cur.FillZero(5000))
			require.Equal(t, int64(5005), cur.Pos())

			pos, err := cur.Seek(-5005, io.SeekCurrent)
			require.NoError(t, err)
			require.Equal(t, int64(0), pos)

			buf := make([]byte, 5)
			_, err = io.ReadFull(cur, buf)
			require.NoError(t, err)
			require.Equal(t, "hello", string(buf))

			end, err := cur.Seek(0, io.SeekEnd)
			require.NoError(t, err)
			require.Equal(t, int64(5005), end)

			_, err = cur.Seek(-1, io.SeekStart)
			require.ErrorIs(t, err, ErrBadOffset)

			require.NoError(t, cur.Flush())
			require.NoError(t, cur.Close())
			require.ErrorIs(t, cur.Close(), ErrClosed)
			_, err = cur.Read(buf)
			require.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	for _, noMmap := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "persist.chk")
		opts := &FileOptions{NoMmap: noMmap}

		fs, err := CreateFile(path, opts)
		require.NoError(t, err)
		payload := make([]byte, 10000)
		for i := range payload {
			payload[i] = byte(i)
		}
		_, err = fs.WriteAt(payload, 0)
		require.NoError(t, err)
		require.NoError(t, fs.SetSize(9000))
		require.NoError(t, fs.Close())

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, int64(9000), info.Size(), "close truncates to logical size")

		fs, err = OpenFile(path, opts)
		require.NoError(t, err)
		require.Equal(t, int64(9000), fs.Size())
		got := make([]byte, 9000)
		_, err = fs.ReadAt(got, 0)
		require.NoError(t, err)
		require.Equal(t, payload[:9000], got)
		require.NoError(t, fs.Close())

		ro, err := OpenReadOnly(path)
		require.NoError(t, err)
		require.Equal(t, payload[:9000], ro.Bytes())
		_, err = ro.WriteAt([]byte{1}, 0)
		require.ErrorIs(t, err, ErrReadOnly)
		require.NoError(t, ro.Close())
	}
}

func TestFileStore_FlushClearsDirtyRanges(t *testing.T) {
	fs, err := CreateFile(filepath.Join(t.TempDir(), "dirty.chk"), &FileOptions{FlushMode: FlushDataOnly})
	require.NoError(t, err)
	defer fs.Close()

	// growing the mapping syncs what is already dirty, so grow first
	_, err = fs.WriteAt([]byte{1}, 9000)
	require.NoError(t, err)
	_, err = fs.WriteAt([]byte{1}, 100)
	require.NoError(t, err)
	require.Len(t, fs.DirtyRanges(), 2)

	require.NoError(t, fs.Flush(context.Background()))
	require.Empty(t, fs.DirtyRanges())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fs.Flush(ctx), context.Canceled)
}

func TestClosedStore(t *testing.T) {
	st := NewMem(16)
	require.NoError(t, st.Close())
	_, err := st.WriteAt([]byte{1}, 0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = st.Open()
	require.ErrorIs(t, err, ErrClosed)
}
