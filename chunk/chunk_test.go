package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/chunkkit/internal/width"
	"github.com/joshuapare/chunkkit/store"
)

// newTestProvider returns a provider over a memory store with a few reserved
// bytes at the front so that no chunk sits at Null.
func newTestProvider(t testing.TB) (*Provider, *store.MemStore) {
	t.Helper()
	st := store.NewMem(0)
	require.NoError(t, st.SetSize(8))
	return NewProvider(st, nil), st
}

// appendChunk materializes a chunk with the given capacity at the end of the store.
func appendChunk(t testing.TB, p *Provider, capacity uint64, proto Header) *Chunk {
	t.Helper()
	st := p.Store()
	ptr := Pointer(st.Size())
	proto.BodyWidth = width.For(capacity)
	proto.NextWidth = width.Max(proto.NextWidth, width.For(uint64(proto.Next)))
	span := uint64(proto.Len()) + capacity
	require.NoError(t, st.SetSize(st.Size()+int64(span)))
	c, err := p.Create(ptr, span, proto)
	require.NoError(t, err)
	require.Equal(t, capacity, c.Capacity())
	return c
}

func TestHeader_EncodeDecode(t *testing.T) {
	tests := []Header{
		{BodyWidth: width.W1, NextWidth: width.W1},
		{BodyWidth: width.W2, NextWidth: width.W4, Capacity: 1000, Size: 999, Next: 70000},
		{BodyWidth: width.W8, NextWidth: width.W8, Capacity: 1 << 50, Size: 3, Next: 1 << 60, Tag: 9, HasTag: true, Fixed: true},
	}
	for _, h := range tests {
		raw := make([]byte, MaxHeaderSize)
		require.NoError(t, h.Encode(raw))
		got, err := DecodeHeader(raw[:h.Len()])
		require.NoError(t, err)
		require.Equal(t, h, got)
	}
}

func TestHeader_MinimalLength(t *testing.T) {
	h := Header{BodyWidth: width.W1, NextWidth: width.W1, Capacity: 10}
	require.Equal(t, MinHeaderSize, h.Len())
	h.HasTag = true
	require.Equal(t, MinHeaderSize+1, h.Len())
}

func TestDecodeHeader_Malformed(t *testing.T) {
	_, err := DecodeHeader([]byte{0})
	require.ErrorIs(t, err, ErrMalformedPointer)

	// width code 7 does not exist
	_, err = DecodeHeader([]byte{0x07, 0, 0, 0})
	require.ErrorIs(t, err, ErrMalformedPointer)

	// used size above capacity
	_, err = DecodeHeader([]byte{0x00, 4, 5, 0})
	require.ErrorIs(t, err, ErrMalformedPointer)
}

func TestHeader_EncodeRejectsNarrowWidth(t *testing.T) {
	h := Header{BodyWidth: width.W1, NextWidth: width.W1, Capacity: 10, Next: 300}
	err := h.Encode(make([]byte, MaxHeaderSize))
	require.ErrorIs(t, err, ErrBitDepthOutOfSpace)
}

func TestHeaderFor_FitsSpan(t *testing.T) {
	for _, span := range []uint64{4, 5, 259, 260, 261, 65540, 1 << 20} {
		h, err := HeaderFor(span, Header{})
		require.NoError(t, err)
		require.Equal(t, span, h.Span(), "span %d", span)
		require.True(t, h.BodyWidth.Fits(h.Capacity))
	}
	_, err := HeaderFor(3, Header{})
	require.ErrorIs(t, err, ErrIllegalState)

	_, err = HeaderFor(10, Header{Size: 7})
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestProvider_ReopenHeaderEquality(t *testing.T) {
	p, st := newTestProvider(t)
	caps := []uint64{0, 10, 255, 256, 1000, 10000}
	var made []*Chunk
	for i, c := range caps {
		ch := appendChunk(t, p, c, Header{Tag: uint8(i), HasTag: i%2 == 0})
		made = append(made, ch)
	}
	require.NoError(t, made[2].SetSize(200))

	reopened := NewProvider(st, nil)
	for _, want := range made {
		got, err := reopened.Get(want.Ptr())
		require.NoError(t, err)
		require.Equal(t, want.Header(), got.Header())
	}
}

func TestProvider_IdentityMap(t *testing.T) {
	p, _ := newTestProvider(t)
	c := appendChunk(t, p, 32, Header{})

	a, err := p.Get(c.Ptr())
	require.NoError(t, err)
	b, err := p.Get(c.Ptr())
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Same(t, c, a)

	p.Forget(c.Ptr())
	d, err := p.Get(c.Ptr())
	require.NoError(t, err)
	require.NotSame(t, c, d)
	require.Equal(t, c.Header(), d.Header())
}

func TestProvider_MalformedPointers(t *testing.T) {
	p, st := newTestProvider(t)
	_, err := p.Get(Null)
	require.ErrorIs(t, err, ErrMalformedPointer)

	_, err = p.Get(Pointer(st.Size() + 10))
	require.ErrorIs(t, err, ErrMalformedPointer)

	// header whose body runs past the end of the store
	ptr := Pointer(st.Size())
	_, err = st.WriteAt([]byte{0x00, 200, 0, 0}, int64(ptr))
	require.NoError(t, err)
	_, err = p.Get(ptr)
	require.ErrorIs(t, err, ErrMalformedPointer)
}

func TestProvider_DesyncedCache(t *testing.T) {
	p, st := newTestProvider(t)
	c := appendChunk(t, p, 50, Header{})
	require.NoError(t, p.Check(c.Ptr()))

	// mutate the used size byte out of band
	_, err := st.WriteAt([]byte{7}, int64(c.Ptr())+2)
	require.NoError(t, err)

	require.ErrorIs(t, p.Check(c.Ptr()), ErrDesyncedCache)

	strict := NewProvider(st, &ProviderOptions{VerifyOnGet: true})
	_, err = strict.Get(c.Ptr())
	require.NoError(t, err, "first load reads the store")
	_, err = st.WriteAt([]byte{8}, int64(c.Ptr())+2)
	require.NoError(t, err)
	_, err = strict.Get(c.Ptr())
	require.ErrorIs(t, err, ErrDesyncedCache)
}

func TestChunk_BodyIO(t *testing.T) {
	p, _ := newTestProvider(t)
	c := appendChunk(t, p, 8, Header{})

	n, err := c.WriteBody([]byte("abcdefghij"), 0)
	require.ErrorIs(t, err, ErrIllegalState)
	require.Equal(t, 8, n)
	require.NoError(t, c.SetSize(8))

	body, err := c.Body()
	require.NoError(t, err)
	require.Equal(t, "abcdefgh", string(body))

	require.ErrorIs(t, c.SetSize(9), ErrIllegalState)
}

func TestChunk_SetNextWidensHeaderUsingSlack(t *testing.T) {
	p, st := newTestProvider(t)
	c := appendChunk(t, p, 100, Header{})
	_, err := c.WriteBody([]byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, c.SetSize(7))
	spanBefore := c.Span()

	far := Pointer(1 << 20)
	require.NoError(t, c.SetNext(far))
	require.Equal(t, far, c.Next())
	require.Equal(t, spanBefore, c.Span(), "span is preserved")
	require.Less(t, c.Capacity(), uint64(100))

	body, err := c.Body()
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))

	fresh, err := NewProvider(st, nil).Load(c.Ptr())
	require.NoError(t, err)
	require.Equal(t, c.Header(), fresh)
}

func TestChunk_SetNextWithoutSlack(t *testing.T) {
	p, _ := newTestProvider(t)
	c := appendChunk(t, p, 2, Header{})
	require.NoError(t, c.SetSize(2))

	err := c.SetNext(Pointer(1 << 20))
	require.ErrorIs(t, err, ErrBitDepthOutOfSpace)
	require.Equal(t, Null, c.Next(), "failed update leaves header untouched")
}

func TestProvider_WalkDetectsLoops(t *testing.T) {
	p, _ := newTestProvider(t)
	a := appendChunk(t, p, 16, Header{})
	b := appendChunk(t, p, 16, Header{})
	require.NoError(t, a.SetNext(b.Ptr()))

	chain, err := p.Walk(a.Ptr())
	require.NoError(t, err)
	require.Equal(t, []*Chunk{a, b}, chain)

	require.NoError(t, b.SetNext(a.Ptr()))
	_, err = p.Walk(a.Ptr())
	require.ErrorIs(t, err, ErrMalformedPointer)
}

func TestRequest_Builder(t *testing.T) {
	base := Req(64)
	fixed := base.Fixed().WithTag(5)
	require.False(t, base.DisableGrowth, "builders copy")
	require.True(t, fixed.DisableGrowth)
	require.Equal(t, Header{Tag: 5, HasTag: true, Fixed: true}, fixed.Proto())
}
