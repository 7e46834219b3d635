package chain

import (
	"errors"
	"fmt"
	"io"
)

// ErrBitPadding is returned by BitReader.Align when the unread bits of the
// current byte are not zero.
var ErrBitPadding = errors.New("chain: non-zero bit padding")

// BitWriter packs values LSB-first into whole bytes. Call Align (or Flush)
// to emit a partially filled byte; the unused high bits are zero.
type BitWriter struct {
	w    io.ByteWriter
	cur  byte
	nbit uint8
}

// NewBitWriter writes packed bytes to w.
func NewBitWriter(w io.ByteWriter) *BitWriter { return &BitWriter{w: w} }

// WriteBool writes one bit.
func (bw *BitWriter) WriteBool(b bool) error {
	var v uint64
	if b {
		v = 1
	}
	return bw.WriteBits(v, 1)
}

// WriteBits writes the low n bits of v, n in [0, 64].
func (bw *BitWriter) WriteBits(v uint64, n uint8) error {
	if n > 64 {
		return fmt.Errorf("chain: bit count %d out of range", n)
	}
	if n < 64 && v>>n != 0 {
		return fmt.Errorf("chain: value %d does not fit in %d bits", v, n)
	}
	for n > 0 {
		take := min(8-bw.nbit, n)
		bw.cur |= byte(v&(1<<take-1)) << bw.nbit
		bw.nbit += take
		v >>= take
		n -= take
		if bw.nbit == 8 {
			if err := bw.w.WriteByte(bw.cur); err != nil {
				return err
			}
			bw.cur, bw.nbit = 0, 0
		}
	}
	return nil
}

// Align emits the pending partial byte, if any.
func (bw *BitWriter) Align() error {
	if bw.nbit == 0 {
		return nil
	}
	err := bw.w.WriteByte(bw.cur)
	bw.cur, bw.nbit = 0, 0
	return err
}

// Flush is Align.
func (bw *BitWriter) Flush() error { return bw.Align() }

// BitReader is the inverse of BitWriter.
type BitReader struct {
	r    io.ByteReader
	cur  byte
	nbit uint8 // unread bits left in cur
}

// NewBitReader reads packed bytes from r.
func NewBitReader(r io.ByteReader) *BitReader { return &BitReader{r: r} }

// ReadBool reads one bit.
func (br *BitReader) ReadBool() (bool, error) {
	v, err := br.ReadBits(1)
	return v == 1, err
}

// ReadBits reads n bits, n in [0, 64].
func (br *BitReader) ReadBits(n uint8) (uint64, error) {
	if n > 64 {
		return 0, fmt.Errorf("chain: bit count %d out of range", n)
	}
	var v uint64
	var got uint8
	for got < n {
		if br.nbit == 0 {
			b, err := br.r.ReadByte()
			if err != nil {
				if err == io.EOF && got > 0 {
					err = io.ErrUnexpectedEOF
				}
				return 0, err
			}
			br.cur, br.nbit = b, 8
		}
		take := min(br.nbit, n-got)
		v |= uint64(br.cur&(1<<take-1)) << got
		br.cur >>= take
		br.nbit -= take
		got += take
	}
	return v, nil
}

// Align discards the rest of the current byte, which must be zero.
func (br *BitReader) Align() error {
	pad := br.cur
	br.cur, br.nbit = 0, 0
	if pad != 0 {
		return fmt.Errorf("%w: %#x", ErrBitPadding, pad)
	}
	return nil
}
