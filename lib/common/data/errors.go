package data

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when an offset or length falls outside a block.
	ErrOutOfRange = errors.New("offset out of range")
	// ErrValueRange is returned when a value does not fit the target width.
	ErrValueRange = errors.New("value out of range for field width")
	// ErrShortRead is returned by Reader when fewer bytes remain than requested.
	ErrShortRead = errors.New("not enough data remaining")
	// ErrStringTooLong is returned when a string does not fit its length prefix
	// or fixed-width field.
	ErrStringTooLong = errors.New("string too long for field")
	// ErrUnknownCharset is returned for charset names with no known encoding.
	ErrUnknownCharset = errors.New("unknown charset")
	// ErrUnencodable is returned when text cannot be represented in a charset.
	ErrUnencodable = errors.New("text not representable in charset")
)

// RangeError describes an out-of-bounds ByteBlock construction or access.
// ByteBlock panics with a *RangeError since such an access is a programming
// error rather than a malformed-input condition.
type RangeError struct {
	Op     string
	Offset int
	Length int
	Size   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("data: %s out of range: offset=%d length=%d size=%d", e.Op, e.Offset, e.Length, e.Size)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}
