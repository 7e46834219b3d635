package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOr(t *testing.T) {
	l := slog.Default()
	require.Same(t, l, Or(l))
	require.Same(t, L, Or(nil))
}

func TestInit_FileAndRetention(t *testing.T) {
	saved := L
	t.Cleanup(func() { L = saved })

	dir := t.TempDir()
	old := filepath.Join(dir, "chunkkit-2000-01-01.log")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	require.NoError(t, os.WriteFile(other, nil, 0o644))

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Level: slog.LevelDebug}))
	L.Debug("hello", "k", 1)

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err), "expired log should be removed")
	_, err = os.Stat(other)
	require.NoError(t, err, "foreign files are kept")

	today := filepath.Join(dir, "chunkkit-"+time.Now().Format("2006-01-02")+".log")
	_, err = os.Stat(today)
	require.NoError(t, err)

	require.NoError(t, Init(Options{}))
	require.NotNil(t, L)
}
