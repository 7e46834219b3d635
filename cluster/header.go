package cluster

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/buf"
)

// Store header layout. All integers are little-endian.
//
//	0x00  magic "CHNK"
//	0x04  version      u16
//	0x06  reserved     u16
//	0x08  store id     16 bytes (UUID)
//	0x18  roots head   u64
//	0x20  free head    u64
//	0x28  checksum     u64, xxhash64 of bytes [0x00, 0x28)
const (
	HeaderSize = 48
	Version    = 1

	offMagic    = 0x00
	offVersion  = 0x04
	offID       = 0x08
	offRoots    = 0x18
	offFree     = 0x20
	offChecksum = 0x28
)

// Magic identifies a cluster store.
var Magic = []byte("CHNK")

// ErrBadHeader is returned for a store whose header is missing or corrupt.
var ErrBadHeader = errors.New("cluster: bad store header")

// Header is the decoded store header.
type Header struct {
	Version   uint16
	ID        uuid.UUID
	RootsHead chunk.Pointer
	FreeHead  chunk.Pointer
}

// MarshalBinary encodes h with a fresh checksum.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	copy(b[offMagic:], Magic)
	buf.PutU16LE(b[offVersion:], h.Version)
	copy(b[offID:], h.ID[:])
	buf.PutU64LE(b[offRoots:], uint64(h.RootsHead))
	buf.PutU64LE(b[offFree:], uint64(h.FreeHead))
	buf.PutU64LE(b[offChecksum:], xxhash.Sum64(b[:offChecksum]))
	return b, nil
}

// ParseHeader decodes and checks a store header.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: store too small for header (%d)", ErrBadHeader, len(b))
	}
	if !bytes.Equal(b[offMagic:offMagic+len(Magic)], Magic) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadHeader, b[offMagic:offMagic+len(Magic)])
	}
	stored, sum := buf.U64LE(b[offChecksum:]), xxhash.Sum64(b[:offChecksum])
	if stored != sum {
		return nil, fmt.Errorf("%w: checksum mismatch: stored=0x%016X computed=0x%016X", ErrBadHeader, stored, sum)
	}
	h := &Header{
		Version:   buf.U16LE(b[offVersion:]),
		RootsHead: chunk.Pointer(buf.U64LE(b[offRoots:])),
		FreeHead:  chunk.Pointer(buf.U64LE(b[offFree:])),
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)", ErrBadHeader, h.Version, Version)
	}
	copy(h.ID[:], b[offID:offID+len(h.ID)])
	if h.RootsHead.IsNull() || h.FreeHead.IsNull() {
		return nil, fmt.Errorf("%w: missing bootstrap chunk", ErrBadHeader)
	}
	return h, nil
}
