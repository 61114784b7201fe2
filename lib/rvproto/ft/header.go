// Package ft implements the OFT2 framing used on file transfer rendezvous
// connections: the fixed-layout transfer header and the AIM file checksum.
package ft

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Header sizes and defaults.
const (
	Magic           = "OFT2"
	MinHeaderSize   = 256
	fixedSize       = 192
	minFilenameSize = MinHeaderSize - fixedSize
	IDStringSize    = 32
	DummySize       = 69
	MacFileInfoSize = 16
	DefaultIDString = "Cool FileXfer"

	DefaultListNameOffset uint8 = 0x1c
	DefaultListSizeOffset uint8 = 0x11
)

// Header types.
const (
	TypePrompt    uint16 = 0x0101
	TypeAck       uint16 = 0x0202
	TypeDone      uint16 = 0x0204
	TypeResume    uint16 = 0x0205
	TypeResumeSOS uint16 = 0x0106
	TypeResumeAck uint16 = 0x0207
)

// Header flags.
const (
	FlagDone    uint8 = 0x01
	FlagDefault uint8 = 0x20
)

// Filename charset codes.
const (
	CharsetASCII  uint16 = 0x0000
	CharsetUCS2BE uint16 = 0x0002
	CharsetLatin1 uint16 = 0x0003
)

var (
	ErrBadMagic       = errors.New("ft: bad header magic")
	ErrHeaderTooShort = errors.New("ft: header length below minimum")
)

// TypeName returns a readable name for a header type.
func TypeName(t uint16) string {
	switch t {
	case TypePrompt:
		return "prompt"
	case TypeAck:
		return "ack"
	case TypeDone:
		return "done"
	case TypeResume:
		return "resume"
	case TypeResumeSOS:
		return "resume-sos"
	case TypeResumeAck:
		return "resume-ack"
	}
	return "unknown"
}

// Header is an OFT2 transfer header. Offsets in the 256-byte minimum
// layout:
//
//	0 magic[4]          4 hdrlen:u16     6 type:u16        8 cookie[8]
//	16 encrypt:u16     18 compress:u16  20 totfiles:u16   22 filesleft:u16
//	24 totparts:u16    26 partsleft:u16 28 totsize:u32    32 size:u32
//	36 modtime:u32     40 checksum:u32  44 rfrcsum:u32    48 rfsize:u32
//	52 cretime:u32     56 rfcsum:u32    60 nrecvd:u32     64 recvcsum:u32
//	68 idstring[32]   100 flags:u8     101 lnameoffset:u8 102 lsizeoffset:u8
//	103 dummy[69]     172 macfileinfo[16] 188 charset:u16 190 subcharset:u16
//	192 filename[64+]
//
// The filename field grows past 64 bytes for long names and the header
// length grows with it. IDString, Dummy and MacFileInfo are carried as is.
type Header struct {
	Type                uint16
	Cookie              [8]byte
	Encryption          uint16
	Compression         uint16
	TotalFiles          uint16
	FilesLeft           uint16
	TotalParts          uint16
	PartsLeft           uint16
	TotalSize           uint32
	Size                uint32
	ModTime             uint32
	Checksum            uint32
	ResForkRecvChecksum uint32
	ResForkSize         uint32
	CreateTime          uint32
	ResForkChecksum     uint32
	BytesReceived       uint32
	ReceivedChecksum    uint32
	IDString            [IDStringSize]byte
	Flags               uint8
	ListNameOffset      uint8
	ListSizeOffset      uint8
	Dummy               [DummySize]byte
	MacFileInfo         [MacFileInfoSize]byte
	Charset             uint16
	Subcharset          uint16
	// FilenameRaw is the encoded, NUL-padded filename field.
	FilenameRaw []byte
}

// NewHeader returns a header with the defaults AIM clients send.
func NewHeader(typ uint16, cookie [8]byte) *Header {
	h := &Header{
		Type:                typ,
		Cookie:              cookie,
		TotalFiles:          1,
		FilesLeft:           1,
		TotalParts:          1,
		PartsLeft:           1,
		Checksum:            ChecksumReset,
		ResForkRecvChecksum: ChecksumReset,
		ResForkChecksum:     ChecksumReset,
		ReceivedChecksum:    ChecksumReset,
		Flags:               FlagDefault,
		ListNameOffset:      DefaultListNameOffset,
		ListSizeOffset:      DefaultListSizeOffset,
	}
	copy(h.IDString[:], DefaultIDString)
	return h
}

// SetFilename encodes name in the narrowest charset that holds it.
func (h *Header) SetFilename(name string) error {
	cs := data.MinimalCharset(name)
	b, err := data.EncodeString(name, cs)
	if err != nil {
		return err
	}
	switch cs {
	case data.CharsetUCS2BE:
		h.Charset = CharsetUCS2BE
	case data.CharsetLatin1:
		h.Charset = CharsetLatin1
	default:
		h.Charset = CharsetASCII
	}
	h.Subcharset = 0
	h.FilenameRaw = b
	return nil
}

// Filename decodes the filename field, dropping the NUL padding.
func (h *Header) Filename() (string, error) {
	raw := h.FilenameRaw
	cs := data.CharsetLatin1
	switch h.Charset {
	case CharsetUCS2BE:
		cs = data.CharsetUCS2BE
		for len(raw) >= 2 && raw[len(raw)-1] == 0 && raw[len(raw)-2] == 0 {
			raw = raw[:len(raw)-2]
		}
		raw = raw[:len(raw)&^1]
	case CharsetASCII:
		cs = data.CharsetASCII
		fallthrough
	default:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
	}
	return data.DecodeString(raw, cs)
}

// IDStringValue returns the ID string without padding.
func (h *Header) IDStringValue() string {
	return data.GetNullPadded(data.Wrap(h.IDString[:]))
}

// Len returns the encoded header length.
func (h *Header) Len() int {
	n := len(h.FilenameRaw)
	if n < minFilenameSize {
		n = minFilenameSize
	}
	return fixedSize + n
}

// WriteTo encodes the header.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	n := h.Len()
	if n > data.MaxUShort {
		return 0, oops.Wrapf(data.ErrValueRange, "oft header length %d", n)
	}
	var buf bytes.Buffer
	buf.Grow(n)
	dw := data.NewWriter(&buf)
	dw.Write([]byte(Magic))
	dw.UShort(uint16(n))
	dw.UShort(h.Type)
	dw.Write(h.Cookie[:])
	for _, v := range []uint16{h.Encryption, h.Compression, h.TotalFiles, h.FilesLeft, h.TotalParts, h.PartsLeft} {
		dw.UShort(v)
	}
	for _, v := range []uint32{
		h.TotalSize, h.Size, h.ModTime, h.Checksum, h.ResForkRecvChecksum, h.ResForkSize,
		h.CreateTime, h.ResForkChecksum, h.BytesReceived, h.ReceivedChecksum,
	} {
		dw.UInt(v)
	}
	dw.Write(h.IDString[:])
	dw.UByte(h.Flags)
	dw.UByte(h.ListNameOffset)
	dw.UByte(h.ListSizeOffset)
	dw.Write(h.Dummy[:])
	dw.Write(h.MacFileInfo[:])
	dw.UShort(h.Charset)
	dw.UShort(h.Subcharset)
	dw.Write(h.FilenameRaw)
	if pad := n - fixedSize - len(h.FilenameRaw); pad > 0 {
		dw.Write(make([]byte, pad))
	}
	if err := dw.Err(); err != nil {
		return 0, err
	}
	written, err := w.Write(buf.Bytes())
	return int64(written), err
}

// ReadHeader reads one header from r. A clean EOF before the first byte is
// returned as io.EOF.
func ReadHeader(r io.Reader) (*Header, error) {
	var pre [6]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, oops.Wrapf(err, "read oft header prefix")
	}
	if string(pre[:4]) != Magic {
		log.WithFields(logger.Fields{"at": "ft.ReadHeader", "magic": string(pre[:4])}).Warn("bad_oft_magic")
		return nil, oops.Wrapf(ErrBadMagic, "got %q", pre[:4])
	}
	n := int(pre[4])<<8 | int(pre[5])
	if n < MinHeaderSize {
		return nil, oops.Wrapf(ErrHeaderTooShort, "length %d", n)
	}
	rest := make([]byte, n-len(pre))
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, oops.Wrapf(io.ErrUnexpectedEOF, "read oft header body: %v", err)
	}
	return parseBody(data.Wrap(rest))
}

func parseBody(b data.ByteBlock) (*Header, error) {
	r := data.NewReader(b)
	h := &Header{Type: r.UShort()}
	r.Fixed(h.Cookie[:])
	h.Encryption = r.UShort()
	h.Compression = r.UShort()
	h.TotalFiles = r.UShort()
	h.FilesLeft = r.UShort()
	h.TotalParts = r.UShort()
	h.PartsLeft = r.UShort()
	h.TotalSize = r.UInt()
	h.Size = r.UInt()
	h.ModTime = r.UInt()
	h.Checksum = r.UInt()
	h.ResForkRecvChecksum = r.UInt()
	h.ResForkSize = r.UInt()
	h.CreateTime = r.UInt()
	h.ResForkChecksum = r.UInt()
	h.BytesReceived = r.UInt()
	h.ReceivedChecksum = r.UInt()
	r.Fixed(h.IDString[:])
	h.Flags = r.UByte()
	h.ListNameOffset = r.UByte()
	h.ListSizeOffset = r.UByte()
	r.Fixed(h.Dummy[:])
	r.Fixed(h.MacFileInfo[:])
	h.Charset = r.UShort()
	h.Subcharset = r.UShort()
	h.FilenameRaw = r.Rest().Bytes()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "parse oft header")
	}
	return h, nil
}
