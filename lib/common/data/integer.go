package data

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// Field widths of the unsigned integer types used on the wire.
const (
	UByteSize  = 1
	UShortSize = 2
	UIntSize   = 4
	LongSize   = 8
)

// Largest values representable in each unsigned width.
const (
	MaxUByte  = 0xFF
	MaxUShort = 0xFFFF
	MaxUInt   = 0xFFFFFFFF
)

func checkRead(b ByteBlock, off, size int) error {
	if off < 0 || off+size > b.Len() {
		return oops.Wrapf(ErrOutOfRange, "read %d bytes at offset %d of %d-byte block", size, off, b.Len())
	}
	return nil
}

// GetUByte reads an unsigned byte at off.
func GetUByte(b ByteBlock, off int) (uint8, error) {
	if err := checkRead(b, off, UByteSize); err != nil {
		return 0, err
	}
	return b.At(off), nil
}

// GetUShort reads a big-endian unsigned 16-bit value at off.
func GetUShort(b ByteBlock, off int) (uint16, error) {
	if err := checkRead(b, off, UShortSize); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.Slice(off, UShortSize).view()), nil
}

// GetUInt reads a big-endian unsigned 32-bit value at off.
func GetUInt(b ByteBlock, off int) (uint32, error) {
	if err := checkRead(b, off, UIntSize); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.Slice(off, UIntSize).view()), nil
}

// GetLong reads a big-endian unsigned 64-bit value at off.
func GetLong(b ByteBlock, off int) (uint64, error) {
	if err := checkRead(b, off, LongSize); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b.Slice(off, LongSize).view()), nil
}

func checkWrite(dst []byte, off, size int) error {
	if off < 0 || off+size > len(dst) {
		return oops.Wrapf(ErrOutOfRange, "write %d bytes at offset %d of %d-byte buffer", size, off, len(dst))
	}
	return nil
}

func checkValue(v int64, max int64) error {
	if v < 0 || v > max {
		return oops.Wrapf(ErrValueRange, "value %d not in [0, %d]", v, max)
	}
	return nil
}

// PutUByte writes v into dst at off. Negative or oversized values fail
// rather than being truncated.
func PutUByte(dst []byte, off int, v int64) error {
	if err := checkValue(v, MaxUByte); err != nil {
		return err
	}
	if err := checkWrite(dst, off, UByteSize); err != nil {
		return err
	}
	dst[off] = byte(v)
	return nil
}

// PutUShort writes v big-endian into dst at off.
func PutUShort(dst []byte, off int, v int64) error {
	if err := checkValue(v, MaxUShort); err != nil {
		return err
	}
	if err := checkWrite(dst, off, UShortSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(dst[off:], uint16(v))
	return nil
}

// PutUInt writes v big-endian into dst at off.
func PutUInt(dst []byte, off int, v int64) error {
	if err := checkValue(v, MaxUInt); err != nil {
		return err
	}
	if err := checkWrite(dst, off, UIntSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(dst[off:], uint32(v))
	return nil
}

// PutLong writes v big-endian into dst at off.
func PutLong(dst []byte, off int, v uint64) error {
	if err := checkWrite(dst, off, LongSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dst[off:], v)
	return nil
}

// UShortBytes returns v as two big-endian bytes.
func UShortBytes(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

// UIntBytes returns v as four big-endian bytes.
func UIntBytes(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}
