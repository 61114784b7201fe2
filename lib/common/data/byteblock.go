package data

import (
	"bytes"
	"encoding/hex"
	"io"
)

// ByteBlock is an immutable view over a range of a shared backing buffer.
//
// Sub-blocks share the backing array and never copy. The invariant
// offset+length <= len(backing) holds for every value produced by this
// package; constructing or indexing outside that range panics with a
// *RangeError.
type ByteBlock struct {
	buf []byte
	off int
	n   int
}

// Wrap returns a block viewing all of b. The caller must not modify b
// afterwards.
func Wrap(b []byte) ByteBlock {
	return ByteBlock{buf: b, off: 0, n: len(b)}
}

// Copy returns a block over a private copy of b.
func Copy(b []byte) ByteBlock {
	c := make([]byte, len(b))
	copy(c, b)
	return Wrap(c)
}

// Block returns a view of n bytes of b starting at off.
func Block(b []byte, off, n int) ByteBlock {
	if off < 0 || n < 0 || off+n > len(b) {
		panic(&RangeError{Op: "block", Offset: off, Length: n, Size: len(b)})
	}
	return ByteBlock{buf: b, off: off, n: n}
}

// Len returns the number of bytes in the view.
func (b ByteBlock) Len() int {
	return b.n
}

// At returns the byte at index i of the view.
func (b ByteBlock) At(i int) byte {
	if i < 0 || i >= b.n {
		panic(&RangeError{Op: "at", Offset: i, Length: 1, Size: b.n})
	}
	return b.buf[b.off+i]
}

// Sub returns the view from off to the end of b.
func (b ByteBlock) Sub(off int) ByteBlock {
	return b.Slice(off, b.n-off)
}

// Slice returns n bytes of the view starting at off.
func (b ByteBlock) Slice(off, n int) ByteBlock {
	if off < 0 || n < 0 || off+n > b.n {
		panic(&RangeError{Op: "slice", Offset: off, Length: n, Size: b.n})
	}
	return ByteBlock{buf: b.buf, off: b.off + off, n: n}
}

// Bytes returns a copy of the viewed bytes.
func (b ByteBlock) Bytes() []byte {
	out := make([]byte, b.n)
	copy(out, b.view())
	return out
}

// String returns the viewed bytes as a Go string without charset decoding.
func (b ByteBlock) String() string {
	return string(b.view())
}

// Hex returns the viewed bytes hex-encoded, for logging.
func (b ByteBlock) Hex() string {
	return hex.EncodeToString(b.view())
}

// Equal reports whether two blocks view the same byte content.
func (b ByteBlock) Equal(o ByteBlock) bool {
	return bytes.Equal(b.view(), o.view())
}

// IndexByte returns the index of the first c in the view, or -1.
func (b ByteBlock) IndexByte(c byte) int {
	return bytes.IndexByte(b.view(), c)
}

// WriteTo writes the viewed bytes to w.
func (b ByteBlock) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.view())
	return int64(n), err
}

func (b ByteBlock) view() []byte {
	return b.buf[b.off : b.off+b.n : b.off+b.n]
}
