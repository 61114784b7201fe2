package data

import (
	"encoding/binary"
	"io"

	"github.com/samber/oops"
)

// Writer writes big-endian fields to an io.Writer with a sticky error.
type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [LongSize]byte
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

// Count returns the number of bytes written.
func (w *Writer) Count() int64 {
	return w.n
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// UByte writes one byte.
func (w *Writer) UByte(v uint8) {
	w.buf[0] = v
	w.Write(w.buf[:UByteSize])
}

// UShort writes a big-endian 16-bit value.
func (w *Writer) UShort(v uint16) {
	binary.BigEndian.PutUint16(w.buf[:], v)
	w.Write(w.buf[:UShortSize])
}

// UInt writes a big-endian 32-bit value.
func (w *Writer) UInt(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:], v)
	w.Write(w.buf[:UIntSize])
}

// Long writes a big-endian 64-bit value.
func (w *Writer) Long(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	w.Write(w.buf[:LongSize])
}

// Block writes the viewed bytes of b.
func (w *Writer) Block(b ByteBlock) {
	w.Write(b.view())
}

// String8 writes s with a one-byte length prefix.
func (w *Writer) String8(s string) {
	if len(s) > MaxUByte {
		w.fail(oops.Wrapf(ErrStringTooLong, "%d bytes exceeds one-byte length prefix", len(s)))
		return
	}
	w.UByte(uint8(len(s)))
	w.Write([]byte(s))
}

// String16 writes s with a two-byte length prefix.
func (w *Writer) String16(s string) {
	if len(s) > MaxUShort {
		w.fail(oops.Wrapf(ErrStringTooLong, "%d bytes exceeds two-byte length prefix", len(s)))
		return
	}
	w.UShort(uint16(len(s)))
	w.Write([]byte(s))
}

// NullPadded writes s into a width-byte field padded with NULs.
func (w *Writer) NullPadded(s string, width int) {
	field, err := EncodeNullPadded(s, width)
	if err != nil {
		w.fail(err)
		return
	}
	w.Write(field)
}
