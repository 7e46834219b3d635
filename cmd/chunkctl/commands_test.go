package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet_RoundTrip(t *testing.T) {
	path := newClusterFile(t)
	data := bytes.Repeat([]byte("chunk data "), 500)

	_, err := captureOutput(t, func() error { return runPut([]string{path, "notes", writeInput(t, data)}) })
	require.NoError(t, err)

	out, err := captureOutput(t, func() error { return runGet([]string{path, "notes"}) })
	require.NoError(t, err)
	require.Equal(t, string(data), out)

	_, err = captureOutput(t, func() error { return runGet([]string{path, "missing"}) })
	require.ErrorContains(t, err, "no such root")
}

func TestInfo_JSON(t *testing.T) {
	path := newClusterFile(t)
	_, err := captureOutput(t, func() error { return runPut([]string{path, "a", writeInput(t, []byte("x"))}) })
	require.NoError(t, err)

	out, err := withJSON(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	var res infoResult
	decodeJSON(t, out, &res)
	assert.Equal(t, uint16(1), res.Version)
	assert.Equal(t, []string{"a"}, res.Roots)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, uint64(48), res.RootsHead)
}

func TestInfo_Text(t *testing.T) {
	path := newClusterFile(t)
	out, err := captureOutput(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	for _, want := range []string{"Cluster Information", "Roots table: 0x30", "Free chunks: 0"} {
		assert.Contains(t, out, want)
	}
}

func TestValidate_CleanAndCorrupt(t *testing.T) {
	path := newClusterFile(t)
	_, err := captureOutput(t, func() error { return runPut([]string{path, "a", writeInput(t, []byte("hello"))}) })
	require.NoError(t, err)

	out, err := captureOutput(t, func() error { return runValidate([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[8] ^= 0xFF // store id, breaks the checksum
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err = captureOutput(t, func() error { return runValidate([]string{path}) })
	require.ErrorContains(t, err, "checksum mismatch")
}

func TestRemoveAndPack_ShrinksFile(t *testing.T) {
	path := newClusterFile(t)
	big := writeInput(t, bytes.Repeat([]byte{0xAB}, 64<<10))
	small := writeInput(t, []byte("keep me"))
	for _, args := range [][]string{{path, "big", big}, {path, "small", small}} {
		_, err := captureOutput(t, func() error { return runPut(args) })
		require.NoError(t, err)
	}
	_, err := captureOutput(t, func() error { return runRemove([]string{path, "big"}) })
	require.NoError(t, err)

	before, err := os.Stat(path)
	require.NoError(t, err)
	out, err := withJSON(t, func() error { return runPack(context.Background(), []string{path}) })
	require.NoError(t, err)
	var rep map[string]any
	decodeJSON(t, out, &rep)
	assert.Greater(t, rep["reclaimed"], float64(60<<10))

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Less(t, after.Size(), before.Size())

	got, err := captureOutput(t, func() error { return runGet([]string{path, "small"}) })
	require.NoError(t, err)
	require.Equal(t, "keep me", got)

	_, err = captureOutput(t, func() error { return runValidate([]string{path}) })
	require.NoError(t, err)
}

func TestDump_ListsChunks(t *testing.T) {
	path := newClusterFile(t)
	_, err := captureOutput(t, func() error { return runPut([]string{path, "greeting", writeInput(t, []byte("hello, chunks"))}) })
	require.NoError(t, err)

	out, err := withJSON(t, func() error { return runDump([]string{path}) })
	require.NoError(t, err)
	var rows []chunkRow
	decodeJSON(t, out, &rows)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, uint64(48), rows[0].Offset)
	for i := 1; i < len(rows); i++ {
		assert.Equal(t, rows[i-1].Offset+rows[i-1].Span, rows[i].Offset)
	}

	dumpRoot = "greeting"
	defer func() { dumpRoot = "" }()
	out, err = captureOutput(t, func() error { return runDump([]string{path}) })
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "hello, chunks"), out)
}
