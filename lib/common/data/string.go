package data

import (
	"strings"

	"github.com/samber/oops"
)

// GetNullPadded returns the ASCII text of a fixed-width field up to the first
// NUL byte, or the whole field when it has none.
func GetNullPadded(b ByteBlock) string {
	if i := b.IndexByte(0); i >= 0 {
		return b.Slice(0, i).String()
	}
	return b.String()
}

// EncodeNullPadded returns s in a width-byte field padded with NULs. A string
// filling the whole field has no terminator, matching how the fixed-width
// fields are read back.
func EncodeNullPadded(s string, width int) ([]byte, error) {
	if len(s) > width {
		return nil, oops.Wrapf(ErrStringTooLong, "%q is %d bytes, field is %d", s, len(s), width)
	}
	field := make([]byte, width)
	copy(field, s)
	return field, nil
}

// GetLenPrefixed8 reads a one-byte length-prefixed string at the start of b
// and returns it with the number of bytes consumed.
func GetLenPrefixed8(b ByteBlock) (string, int, error) {
	r := NewReader(b)
	s := r.String8()
	if err := r.Err(); err != nil {
		return "", 0, err
	}
	return s, r.Pos(), nil
}

// GetLenPrefixed16 reads a two-byte length-prefixed string at the start of b.
func GetLenPrefixed16(b ByteBlock) (string, int, error) {
	r := NewReader(b)
	s := r.String16()
	if err := r.Err(); err != nil {
		return "", 0, err
	}
	return s, r.Pos(), nil
}

// NormalizeScreenname returns the canonical comparison form of a screen name:
// lower case with spaces removed.
func NormalizeScreenname(sn string) string {
	return strings.ToLower(strings.ReplaceAll(sn, " ", ""))
}

// ScreennamesEqual reports whether two screen names refer to the same user.
func ScreennamesEqual(a, b string) bool {
	return NormalizeScreenname(a) == NormalizeScreenname(b)
}
