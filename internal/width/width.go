// Package width picks and encodes the byte width used for every on-disk
// pointer and length.
//
// A Width is the number of bytes a value occupies. Only 1, 2, 3, 4, 5, 6 and
// 8 byte widths exist; values are stored little-endian.
package width

import (
	"errors"
	"fmt"
	"io"
)

// ErrOutOfSpace indicates a value does not fit the width chosen to store it.
var ErrOutOfSpace = errors.New("width: value out of bit depth")

// ErrBadCode indicates an encoded width code outside the known set.
var ErrBadCode = errors.New("width: unknown width code")

// Width is a byte count used to encode a non-negative integer.
type Width uint8

const (
	W1 Width = 1
	W2 Width = 2
	W3 Width = 3
	W4 Width = 4
	W5 Width = 5
	W6 Width = 6
	W8 Width = 8
)

// All lists every supported width in ascending order. The position of a
// width in this slice is its 3-bit code.
var All = [...]Width{W1, W2, W3, W4, W5, W6, W8}

// For returns the smallest width able to hold n. Zero uses W1.
func For(n uint64) Width {
	for _, w := range All {
		if n <= w.Max() {
			return w
		}
	}
	return W8
}

// Max returns the largest value representable in w.
func (w Width) Max() uint64 {
	if w >= W8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(w)) - 1
}

// Fits reports whether n can be stored in w.
func (w Width) Fits(n uint64) bool { return n <= w.Max() }

// Bytes returns the width as an int, for slicing.
func (w Width) Bytes() int { return int(w) }

// Valid reports whether w is one of the supported widths.
func (w Width) Valid() bool {
	_, err := w.code()
	return err == nil
}

func (w Width) code() (uint8, error) {
	for i, v := range All {
		if v == w {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %d bytes", ErrBadCode, uint8(w))
}

// Code returns the 3-bit code of w. It panics on an unsupported width,
// which can only come from a programming error.
func (w Width) Code() uint8 {
	c, err := w.code()
	if err != nil {
		panic(err)
	}
	return c
}

// FromCode is the inverse of Code.
func FromCode(c uint8) (Width, error) {
	if int(c) >= len(All) {
		return 0, fmt.Errorf("%w: code %d", ErrBadCode, c)
	}
	return All[c], nil
}

// Max returns the wider of a and b.
func Max(a, b Width) Width {
	if a > b {
		return a
	}
	return b
}

// Put encodes v into dst[:w]. dst must be at least w bytes long.
func Put(dst []byte, w Width, v uint64) error {
	if !w.Fits(v) {
		return fmt.Errorf("%w: %d does not fit in %d bytes", ErrOutOfSpace, v, w)
	}
	if len(dst) < w.Bytes() {
		return fmt.Errorf("width: short buffer: %d < %d", len(dst), w)
	}
	for i := range w.Bytes() {
		dst[i] = byte(v >> (8 * uint(i)))
	}
	return nil
}

// Get decodes a w-byte value from src. It returns 0 when src is too short.
func Get(src []byte, w Width) uint64 {
	if len(src) < w.Bytes() {
		return 0
	}
	var v uint64
	for i := range w.Bytes() {
		v |= uint64(src[i]) << (8 * uint(i))
	}
	return v
}

// Write encodes v at width w onto wr.
func Write(wr io.Writer, w Width, v uint64) error {
	var tmp [8]byte
	if err := Put(tmp[:], w, v); err != nil {
		return err
	}
	_, err := wr.Write(tmp[:w])
	return err
}

// Read decodes a w-byte value from r.
func Read(r io.Reader, w Width) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:w]); err != nil {
		return 0, err
	}
	return Get(tmp[:], w), nil
}
