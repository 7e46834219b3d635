package buf

import "testing"

func TestEndianHelpers(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	if got := U16LE(data); got != 0x2301 {
		t.Fatalf("U16LE = 0x%x, want 0x2301", got)
	}
	if got := U32LE(data); got != 0x67452301 {
		t.Fatalf("U32LE = 0x%x, want 0x67452301", got)
	}
	if got := U64LE(data); got != 0xefcdab8967452301 {
		t.Fatalf("U64LE = 0x%x, want 0xefcdab8967452301", got)
	}

	short := []byte{0xAA}
	if U16LE(short) != 0 || U32LE(short) != 0 || U64LE(short) != 0 {
		t.Fatalf("short reads should return 0")
	}
}

func TestPutEndianHelpers(t *testing.T) {
	b := make([]byte, 8)
	if !PutU64LE(b, 0xefcdab8967452301) || U64LE(b) != 0xefcdab8967452301 {
		t.Fatalf("PutU64LE round trip failed: % x", b)
	}
	if !PutU32LE(b[2:], 0xdeadbeef) || U32LE(b[2:]) != 0xdeadbeef {
		t.Fatalf("PutU32LE round trip failed: % x", b)
	}
	if !PutU16LE(b[6:], 0xbeef) || U16LE(b[6:]) != 0xbeef {
		t.Fatalf("PutU16LE round trip failed: % x", b)
	}
	if PutU16LE(b[7:], 1) || PutU32LE(b[5:], 1) || PutU64LE(b[1:], 1) {
		t.Fatalf("short puts should fail")
	}
}
