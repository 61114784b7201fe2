// Package tlv implements the type-length-value records that make up nearly
// every OSCAR structure above the framing layers.
//
// Wire layout: [type:2][length:2][data:length], all big-endian. A chain is
// the plain concatenation of records with no count or terminator unless the
// enclosing structure supplies one.
package tlv

import (
	"bytes"
	"errors"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

// HeaderSize is the size of a TLV header: type (2 bytes) + length (2 bytes).
const HeaderSize = 4

// ErrTooLarge is returned when TLV data cannot fit the 16-bit length field.
var ErrTooLarge = errors.New("tlv data exceeds 0xFFFF bytes")

// Tlv is a single type-length-value record.
type Tlv struct {
	Type uint16
	Data data.ByteBlock
}

// New returns a TLV holding a private copy of b.
func New(typ uint16, b []byte) Tlv {
	return Tlv{Type: typ, Data: data.Copy(b)}
}

// NewEmpty returns a TLV with no data, used as a presence flag.
func NewEmpty(typ uint16) Tlv {
	return Tlv{Type: typ}
}

// NewUShort returns a TLV holding a big-endian 16-bit value.
func NewUShort(typ uint16, v uint16) Tlv {
	return Tlv{Type: typ, Data: data.Wrap(data.UShortBytes(v))}
}

// NewUInt returns a TLV holding a big-endian 32-bit value.
func NewUInt(typ uint16, v uint32) Tlv {
	return Tlv{Type: typ, Data: data.Wrap(data.UIntBytes(v))}
}

// NewString returns a TLV holding the raw bytes of s.
func NewString(typ uint16, s string) Tlv {
	return Tlv{Type: typ, Data: data.Wrap([]byte(s))}
}

// UShort returns the first two data bytes as a big-endian value.
func (t Tlv) UShort() (uint16, bool) {
	v, err := data.GetUShort(t.Data, 0)
	return v, err == nil
}

// UInt returns the first four data bytes as a big-endian value.
func (t Tlv) UInt() (uint32, bool) {
	v, err := data.GetUInt(t.Data, 0)
	return v, err == nil
}

// String returns the data as a string without charset decoding.
func (t Tlv) String() string {
	return t.Data.String()
}

// Size returns the encoded size of t including its header.
func (t Tlv) Size() int {
	return HeaderSize + t.Data.Len()
}

// WriteTo writes the encoded TLV to w.
func (t Tlv) WriteTo(w io.Writer) (int64, error) {
	if t.Data.Len() > data.MaxUShort {
		return 0, oops.Wrapf(ErrTooLarge, "type 0x%04x has %d bytes", t.Type, t.Data.Len())
	}
	dw := data.NewWriter(w)
	dw.UShort(t.Type)
	dw.UShort(uint16(t.Data.Len()))
	dw.Block(t.Data)
	return dw.Count(), dw.Err()
}

// Bytes returns the encoded TLV.
func (t Tlv) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read decodes one TLV from the start of b. It returns the TLV, the number of
// bytes consumed and whether a complete record was present.
func Read(b data.ByteBlock) (Tlv, int, bool) {
	if b.Len() < HeaderSize {
		return Tlv{}, 0, false
	}
	typ, _ := data.GetUShort(b, 0)
	n, _ := data.GetUShort(b, 2)
	if HeaderSize+int(n) > b.Len() {
		return Tlv{}, 0, false
	}
	return Tlv{Type: typ, Data: b.Slice(HeaderSize, int(n))}, HeaderSize + int(n), true
}
