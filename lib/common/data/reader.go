package data

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// Reader is a forward cursor over a ByteBlock with a sticky error. After the
// first short read every further call returns a zero value and Err reports
// the original failure, so decoders can read a fixed layout and check once.
type Reader struct {
	b   ByteBlock
	pos int
	err error
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b ByteBlock) *Reader {
	return &Reader{b: b}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.b.Len() - r.pos
}

func (r *Reader) take(n int) (ByteBlock, bool) {
	if r.err != nil {
		return ByteBlock{}, false
	}
	if n < 0 || n > r.Remaining() {
		r.err = oops.Wrapf(ErrShortRead, "need %d bytes at offset %d, have %d", n, r.pos, r.Remaining())
		return ByteBlock{}, false
	}
	blk := r.b.Slice(r.pos, n)
	r.pos += n
	return blk, true
}

// UByte reads one unsigned byte.
func (r *Reader) UByte() uint8 {
	blk, ok := r.take(UByteSize)
	if !ok {
		return 0
	}
	return blk.At(0)
}

// UShort reads a big-endian unsigned 16-bit value.
func (r *Reader) UShort() uint16 {
	blk, ok := r.take(UShortSize)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint16(blk.view())
}

// UInt reads a big-endian unsigned 32-bit value.
func (r *Reader) UInt() uint32 {
	blk, ok := r.take(UIntSize)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint32(blk.view())
}

// Long reads a big-endian unsigned 64-bit value.
func (r *Reader) Long() uint64 {
	blk, ok := r.take(LongSize)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(blk.view())
}

// Block reads the next n bytes as a sub-block.
func (r *Reader) Block(n int) ByteBlock {
	blk, _ := r.take(n)
	return blk
}

// Fixed fills dst from the next len(dst) bytes.
func (r *Reader) Fixed(dst []byte) {
	blk, ok := r.take(len(dst))
	if ok {
		copy(dst, blk.view())
	}
}

// Rest consumes and returns every unread byte.
func (r *Reader) Rest() ByteBlock {
	if r.err != nil {
		return ByteBlock{}
	}
	blk, _ := r.take(r.Remaining())
	return blk
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// String8 reads a string prefixed by a one-byte length.
func (r *Reader) String8() string {
	n := int(r.UByte())
	return r.Block(n).String()
}

// String16 reads a string prefixed by a two-byte big-endian length.
func (r *Reader) String16() string {
	n := int(r.UShort())
	return r.Block(n).String()
}

// NullPadded reads a width-byte field and returns the text before the first
// NUL.
func (r *Reader) NullPadded(width int) string {
	return GetNullPadded(r.Block(width))
}
