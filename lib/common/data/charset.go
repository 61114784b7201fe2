package data

import (
	"strings"

	"github.com/samber/oops"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Charset names as they appear in OSCAR MIME-style fields.
const (
	CharsetASCII   = "us-ascii"
	CharsetLatin1  = "iso-8859-1"
	CharsetUCS2BE  = "unicode-2-0"
	CharsetUTF8    = "utf-8"
	defaultCharset = CharsetASCII
)

var ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func encodingFor(charset string) (encoding.Encoding, error) {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" {
		cs = defaultCharset
	}
	switch cs {
	case CharsetASCII, "ascii":
		// Decoded leniently as Latin-1; EncodeString checks the 7-bit range.
		return charmap.ISO8859_1, nil
	case CharsetLatin1, "latin1":
		return charmap.ISO8859_1, nil
	case CharsetUCS2BE, "utf-16be", "ucs-2be":
		return ucs2, nil
	case CharsetUTF8, "utf8":
		return encoding.Nop, nil
	}
	return nil, oops.Wrapf(ErrUnknownCharset, "%q", charset)
}

// DecodeString converts bytes in the named charset to a Go string. An empty
// charset means US-ASCII.
func DecodeString(b []byte, charset string) (string, error) {
	enc, err := encodingFor(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", oops.Wrapf(err, "decode %s", charset)
	}
	return string(out), nil
}

// EncodeString converts s to bytes in the named charset.
func EncodeString(s string, charset string) ([]byte, error) {
	enc, err := encodingFor(charset)
	if err != nil {
		return nil, err
	}
	cs := strings.ToLower(strings.TrimSpace(charset))
	if (cs == "" || cs == CharsetASCII || cs == "ascii") && !isASCII(s) {
		return nil, oops.Wrapf(ErrUnencodable, "non-ascii text for %s", CharsetASCII)
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, oops.Wrapf(ErrUnencodable, "encode %s: %v", charset, err)
	}
	return out, nil
}

// MinimalCharset returns the narrowest charset able to represent s:
// US-ASCII, then ISO-8859-1, then UCS-2BE.
func MinimalCharset(s string) string {
	charset := CharsetASCII
	for _, r := range s {
		switch {
		case r > 0xFF:
			return CharsetUCS2BE
		case r >= 0x80:
			charset = CharsetLatin1
		}
	}
	return charset
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
