// Package directim implements the ODC2 framing of direct IM rendezvous
// connections: a 76-byte header followed by the message payload.
package directim

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Header constants.
const (
	Magic          = "ODC2"
	HeaderSize     = 76
	ScreennameSize = 32

	TypeMessage uint16 = 0x0001
)

// Header flags.
const (
	FlagAutoResponse uint16 = 0x0001
	FlagTypingPacket uint16 = 0x0002
	FlagTyped        uint16 = 0x0004
	FlagTyping       uint16 = 0x0008
)

// Payload encodings.
const (
	EncodingASCII  uint16 = 0x0000
	EncodingUCS2BE uint16 = 0x0002
	EncodingLatin1 uint16 = 0x0003
)

// MaxPayload bounds the payload size accepted from a peer.
const MaxPayload = 4 << 20

var (
	ErrBadMagic        = errors.New("directim: bad header magic")
	ErrBadHeaderLength = errors.New("directim: unexpected header length")
	ErrPayloadTooLarge = errors.New("directim: payload too large")
)

// Header is an ODC2 header:
//
//	0 magic[4]     4 hdrlen:u16   6 type:u16     8 subtype:u16
//	10 zero[2]    12 cookie[8]   20 zero[8]     28 payload_len:u32
//	32 encoding:u16 34 zero[4]   38 flags:u16   40 zero[4]
//	44 screenname[32]
//
// The zero regions are kept as read.
type Header struct {
	Type       uint16
	Subtype    uint16
	Cookie     [8]byte
	PayloadLen uint32
	Encoding   uint16
	Flags      uint16
	Screenname string
	Reserved1  [2]byte
	Reserved2  [8]byte
	Reserved3  [4]byte
	Reserved4  [4]byte
}

// Typing reports the typing state the header announces.
func (h *Header) Typing() (typed, typing bool) {
	if h.Flags&FlagTypingPacket == 0 {
		return false, false
	}
	return h.Flags&FlagTyped != 0, h.Flags&FlagTyping != 0
}

// WriteTo encodes the header.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	sn, err := data.EncodeNullPadded(h.Screenname, ScreennameSize)
	if err != nil {
		return 0, oops.Wrapf(err, "direct im screenname")
	}
	var buf bytes.Buffer
	dw := data.NewWriter(&buf)
	dw.Write([]byte(Magic))
	dw.UShort(HeaderSize)
	dw.UShort(h.Type)
	dw.UShort(h.Subtype)
	dw.Write(h.Reserved1[:])
	dw.Write(h.Cookie[:])
	dw.Write(h.Reserved2[:])
	dw.UInt(h.PayloadLen)
	dw.UShort(h.Encoding)
	dw.Write(h.Reserved3[:])
	dw.UShort(h.Flags)
	dw.Write(h.Reserved4[:])
	dw.Write(sn)
	if err := dw.Err(); err != nil {
		return 0, err
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadHeader reads one header. A clean EOF before the first byte is
// returned as io.EOF.
func ReadHeader(r io.Reader) (*Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, oops.Wrapf(io.ErrUnexpectedEOF, "read odc header: %v", err)
	}
	if string(raw[:4]) != Magic {
		log.WithFields(logger.Fields{"at": "directim.ReadHeader", "magic": string(raw[:4])}).Warn("bad_odc_magic")
		return nil, oops.Wrapf(ErrBadMagic, "got %q", raw[:4])
	}
	rd := data.NewReader(data.Wrap(raw[4:]))
	if n := rd.UShort(); n != HeaderSize {
		return nil, oops.Wrapf(ErrBadHeaderLength, "length %d", n)
	}
	h := &Header{Type: rd.UShort(), Subtype: rd.UShort()}
	rd.Fixed(h.Reserved1[:])
	rd.Fixed(h.Cookie[:])
	rd.Fixed(h.Reserved2[:])
	h.PayloadLen = rd.UInt()
	h.Encoding = rd.UShort()
	rd.Fixed(h.Reserved3[:])
	h.Flags = rd.UShort()
	rd.Fixed(h.Reserved4[:])
	h.Screenname = rd.NullPadded(ScreennameSize)
	if err := rd.Err(); err != nil {
		return nil, oops.Wrapf(err, "parse odc header")
	}
	return h, nil
}

// Message is a header with its payload.
type Message struct {
	Header  *Header
	Payload []byte
}

// NewMessage returns a message frame carrying text from sn.
func NewMessage(cookie [8]byte, sn, text string) (*Message, error) {
	cs := data.MinimalCharset(text)
	b, err := data.EncodeString(text, cs)
	if err != nil {
		return nil, err
	}
	enc := EncodingASCII
	switch cs {
	case data.CharsetUCS2BE:
		enc = EncodingUCS2BE
	case data.CharsetLatin1:
		enc = EncodingLatin1
	}
	h := &Header{Type: TypeMessage, Cookie: cookie, PayloadLen: uint32(len(b)), Encoding: enc, Screenname: sn}
	return &Message{Header: h, Payload: b}, nil
}

// NewTyping returns a payload-less typing notification.
func NewTyping(cookie [8]byte, sn string, typed, typing bool) *Message {
	flags := FlagTypingPacket
	if typed {
		flags |= FlagTyped
	}
	if typing {
		flags |= FlagTyping
	}
	return &Message{Header: &Header{Type: TypeMessage, Cookie: cookie, Flags: flags, Screenname: sn}}
}

// Text decodes the payload using the header's encoding.
func (m *Message) Text() (string, error) {
	cs := data.CharsetLatin1
	switch m.Header.Encoding {
	case EncodingASCII:
		cs = data.CharsetASCII
	case EncodingUCS2BE:
		cs = data.CharsetUCS2BE
	}
	return data.DecodeString(m.Payload, cs)
}

// WriteMessage writes the header and payload. The header's payload length
// is set from the payload.
func WriteMessage(w io.Writer, m *Message) error {
	m.Header.PayloadLen = uint32(len(m.Payload))
	if _, err := m.Header.WriteTo(w); err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		return nil
	}
	_, err := w.Write(m.Payload)
	return err
}

// ReadMessage reads a header and its payload.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if h.PayloadLen > MaxPayload {
		return nil, oops.Wrapf(ErrPayloadTooLarge, "%d bytes", h.PayloadLen)
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, oops.Wrapf(io.ErrUnexpectedEOF, "read odc payload: %v", err)
	}
	return &Message{Header: h, Payload: payload}, nil
}
