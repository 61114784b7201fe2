package icbm

import (
	"bytes"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

// Message block fragment IDs.
const (
	fragmentText     uint8 = 0x01
	fragmentFeatures uint8 = 0x05
)

// Charset codes of a text fragment.
const (
	CharsetASCII  uint16 = 0x0000
	CharsetUCS2BE uint16 = 0x0002
	CharsetLatin1 uint16 = 0x0003
)

// DefaultFeatures is the feature list AIM clients send with every IM.
var DefaultFeatures = []byte{0x01}

// Message is the decoded content of a channel-1 message block:
//
//	fragment := id:u8 | version:u8 | len:u16 | data
//	text     := charset:u16 | subset:u16 | text
type Message struct {
	Features []byte
	Charset  uint16
	Subset   uint16
	// Raw holds the encoded text exactly as sent.
	Raw []byte
}

// NewMessage encodes text in the narrowest charset that holds it.
func NewMessage(text string) (Message, error) {
	name := data.MinimalCharset(text)
	raw, err := data.EncodeString(text, name)
	if err != nil {
		return Message{}, err
	}
	return Message{Features: DefaultFeatures, Charset: charsetCode(name), Raw: raw}, nil
}

func charsetCode(name string) uint16 {
	switch name {
	case data.CharsetUCS2BE:
		return CharsetUCS2BE
	case data.CharsetLatin1:
		return CharsetLatin1
	}
	return CharsetASCII
}

// CharsetName maps a charset code to its name. Unknown codes decode as
// Latin-1, which never fails.
func CharsetName(code uint16) string {
	switch code {
	case CharsetUCS2BE:
		return data.CharsetUCS2BE
	case CharsetASCII:
		return data.CharsetASCII
	}
	return data.CharsetLatin1
}

// Text decodes the message text.
func (m Message) Text() (string, error) {
	return data.DecodeString(m.Raw, CharsetName(m.Charset))
}

// ParseMessage decodes a message block. Unknown fragments are skipped; when
// several text fragments are present the first wins.
func ParseMessage(b data.ByteBlock) (Message, error) {
	var m Message
	r := data.NewReader(b)
	seenText := false
	for r.Remaining() > 0 {
		id := r.UByte()
		r.UByte()
		n := int(r.UShort())
		frag := r.Block(n)
		if err := r.Err(); err != nil {
			return m, oops.Wrapf(err, "message fragment 0x%02x", id)
		}
		switch id {
		case fragmentFeatures:
			m.Features = frag.Bytes()
		case fragmentText:
			if seenText {
				continue
			}
			fr := data.NewReader(frag)
			m.Charset = fr.UShort()
			m.Subset = fr.UShort()
			if err := fr.Err(); err != nil {
				return m, oops.Wrapf(err, "message text")
			}
			m.Raw = fr.Rest().Bytes()
			seenText = true
		}
	}
	return m, nil
}

// Bytes encodes the message block.
func (m Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := data.NewWriter(&buf)
	w.UByte(fragmentFeatures)
	w.UByte(0x01)
	w.UShort(uint16(len(m.Features)))
	w.Write(m.Features)
	if len(m.Raw)+4 > data.MaxUShort {
		return nil, oops.Wrapf(data.ErrValueRange, "message text is %d bytes", len(m.Raw))
	}
	w.UByte(fragmentText)
	w.UByte(0x01)
	w.UShort(uint16(len(m.Raw) + 4))
	w.UShort(m.Charset)
	w.UShort(m.Subset)
	w.Write(m.Raw)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
