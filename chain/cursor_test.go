package chain_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/chunkkit/alloc"
	"github.com/joshuapare/chunkkit/chain"
	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/store"
)

type env struct {
	st *store.MemStore
	p  *chunk.Provider
	a  *alloc.Allocator
	m  *chain.Manager
}

func newEnv(t testing.TB, opts *chain.Options) *env {
	t.Helper()
	st := store.NewMem(0)
	p := chunk.NewProvider(st, nil)
	a, err := alloc.New(p, nil)
	require.NoError(t, err)
	return &env{st: st, p: p, a: a, m: chain.NewManager(p, a, opts)}
}

func (e *env) head(t testing.TB, req chunk.Request) chunk.Pointer {
	t.Helper()
	c, err := e.a.Alloc(req)
	require.NoError(t, err)
	return c.Ptr()
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

func readAll(t testing.TB, m *chain.Manager, head chunk.Pointer) []byte {
	t.Helper()
	cur, err := m.Open(head)
	require.NoError(t, err)
	defer func() { require.NoError(t, cur.Close()) }()
	b, err := io.ReadAll(cur)
	require.NoError(t, err)
	return b
}

func TestCursor_PatternAcrossContinuation(t *testing.T) {
	for _, n := range []int{10, 256, 1000, 10000} {
		e := newEnv(t, nil)
		head := e.head(t, chunk.Req(uint64(n/2)))

		cur, err := e.m.Open(head)
		require.NoError(t, err)
		written, err := cur.Write(pattern(n))
		require.NoError(t, err)
		require.Equal(t, n, written)
		require.Equal(t, uint64(n), cur.Size())
		require.GreaterOrEqual(t, cur.Chunks(), 2, "n=%d", n)
		require.NoError(t, cur.Close())

		// fresh provider and manager over the same bytes
		p := chunk.NewProvider(e.st, nil)
		a, err := alloc.New(p, nil)
		require.NoError(t, err)
		got := readAll(t, chain.NewManager(p, a, nil), head)
		require.Equal(t, pattern(n), got, "n=%d", n)
	}
}

func TestCursor_OverwriteAcrossBoundary(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(4))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	_, err = cur.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = cur.Write([]byte("XYZW"))
	require.NoError(t, err)
	require.Equal(t, uint64(6), cur.Pos())
	require.Equal(t, uint64(10), cur.Size())
	require.NoError(t, cur.Close())

	require.Equal(t, "abXYZWghij", string(readAll(t, e.m, head)))
}

func TestCursor_SeekPastEndZeroFills(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(8))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Seek(5, io.SeekEnd)
	require.NoError(t, err)
	require.NoError(t, cur.WriteByte('x'))
	require.Equal(t, uint64(6), cur.Size())

	_, err = cur.Seek(0, io.SeekStart)
	require.NoError(t, err)
	b, err := io.ReadAll(cur)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 'x'}, b)

	_, err = cur.ReadByte()
	require.ErrorIs(t, err, io.EOF)
	_, err = cur.Seek(-1, io.SeekStart)
	require.Error(t, err)
	require.NoError(t, cur.Close())
}

func TestCursor_TrimReleasesTail(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(100))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write(pattern(1000))
	require.NoError(t, err)
	require.Greater(t, cur.Chunks(), 1)
	frees := e.a.Stats().Frees

	_, err = cur.Seek(50, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, cur.Trim())
	require.Equal(t, uint64(50), cur.Size())
	require.Equal(t, 1, cur.Chunks())
	require.Greater(t, e.a.Stats().Frees, frees)

	hc, err := e.p.Get(head)
	require.NoError(t, err)
	require.Equal(t, chunk.Null, hc.Next())
	require.GreaterOrEqual(t, hc.Capacity(), uint64(50), "capacity is kept")
	require.NoError(t, cur.Close())

	require.Equal(t, pattern(50), readAll(t, e.m, head))
}

func TestCursor_TruncateToChunkBoundary(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(10))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write(pattern(30))
	require.NoError(t, err)

	require.NoError(t, cur.Truncate(10))
	require.Equal(t, 1, cur.Chunks())
	require.NoError(t, cur.Truncate(0))
	require.Equal(t, uint64(0), cur.Size())
	require.NoError(t, cur.Truncate(3))
	require.Equal(t, uint64(3), cur.Size())
	require.NoError(t, cur.Close())
	require.Equal(t, []byte{0, 0, 0}, readAll(t, e.m, head))
}

func TestCursor_RetainTailKeepsChunks(t *testing.T) {
	e := newEnv(t, &chain.Options{RetainTail: true})
	head := e.head(t, chunk.Req(16))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write(pattern(100))
	require.NoError(t, err)
	n := cur.Chunks()
	allocs := e.a.Stats().Allocs

	require.NoError(t, cur.Truncate(0))
	require.Equal(t, n, cur.Chunks())
	require.Zero(t, cur.Size())

	_, err = cur.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = cur.Write(pattern(100))
	require.NoError(t, err)
	require.Equal(t, allocs, e.a.Stats().Allocs, "retained chunks are refilled")
	require.NoError(t, cur.Close())
	require.Equal(t, pattern(100), readAll(t, e.m, head))
}

func TestCursor_FixedChunkExhausted(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(8).Fixed())
	cur, err := e.m.Open(head)
	require.NoError(t, err)

	n, err := cur.Write(pattern(10))
	require.ErrorIs(t, err, chunk.ErrIllegalState)
	require.Contains(t, err.Error(), "fixed chunk exhausted")
	require.Equal(t, 8, n)
	require.Equal(t, 1, cur.Chunks())
	require.NoError(t, cur.Close())
}

func TestCursor_LinkMovesTailWhenNextFieldTooNarrow(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(8))
	hc, err := e.p.Get(head)
	require.NoError(t, err)
	require.Equal(t, 1, hc.Header().NextWidth.Bytes())
	e.head(t, chunk.Req(300)) // pushes the store end past 255

	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write(pattern(8))
	require.NoError(t, err)
	require.Equal(t, uint64(0), hc.Slack())

	_, err = cur.Write([]byte{0xAA})
	require.NoError(t, err)
	require.Equal(t, 2, cur.Chunks())
	require.Equal(t, uint64(7), hc.Capacity())
	require.Equal(t, uint64(7), hc.Size())
	require.Greater(t, uint64(hc.Next()), uint64(255))
	require.NoError(t, cur.Close())

	want := append(pattern(8), 0xAA)
	require.Equal(t, want, readAll(t, e.m, head))
}

func TestManager_FreeChain(t *testing.T) {
	e := newEnv(t, nil)
	head := e.head(t, chunk.Req(8))
	cur, err := e.m.Open(head)
	require.NoError(t, err)
	_, err = cur.Write(pattern(100))
	require.NoError(t, err)
	ptrs, err := e.m.Chunks(head)
	require.NoError(t, err)
	require.Greater(t, len(ptrs), 1)

	require.ErrorIs(t, e.m.Free(head), chunk.ErrIllegalState)
	require.NoError(t, cur.Close())
	require.NoError(t, e.m.Free(head))
	require.True(t, e.a.IsFree(head))
	require.Equal(t, 1, e.a.Stats().FreeChunks, "adjacent chain chunks coalesce")
}

func TestManager_CreateOpensSession(t *testing.T) {
	e := newEnv(t, nil)
	cur, err := e.m.Create(chunk.Req(4).WithTag(7))
	require.NoError(t, err)
	require.Equal(t, 1, e.m.Sessions(cur.Head()))
	_, err = cur.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, cur.Close())
	require.Zero(t, e.m.OpenSessions())
	require.True(t, bytes.Equal([]byte("hello world"), readAll(t, e.m, cur.Head())))
}
