package flap

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/samber/oops"
)

// ProtocolVersion is the FLAP version sent at the start of channel 1.
const ProtocolVersion uint32 = 0x00000001

// Login channel TLV types.
const (
	TlvLoginCookie uint16 = 0x0006
)

// LoginCmd opens a connection: the client and server each send one as the
// first frame.
type LoginCmd struct {
	Version uint32
	TLVs    tlv.Chain
}

// NewLoginCmd returns a LoginCmd carrying the given TLVs.
func NewLoginCmd(tlvs ...tlv.Tlv) *LoginCmd {
	return &LoginCmd{Version: ProtocolVersion, TLVs: tlv.NewChain(tlvs...)}
}

// NewCookieLoginCmd returns the LoginCmd that presents an authorization
// cookie to a BOS or service server.
func NewCookieLoginCmd(cookie []byte) *LoginCmd {
	return NewLoginCmd(tlv.New(TlvLoginCookie, cookie))
}

// DecodeLoginCmd decodes a channel 1 packet.
func DecodeLoginCmd(p Packet) (Command, error) {
	if p.Data.Len() < 4 {
		return nil, oops.Wrapf(ErrShortData, "login command has %d bytes", p.Data.Len())
	}
	version, _ := data.GetUInt(p.Data, 0)
	return &LoginCmd{Version: version, TLVs: tlv.ReadChain(p.Data.Sub(4))}, nil
}

func (c *LoginCmd) Channel() uint8 { return ChannelLogin }

func (c *LoginCmd) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UInt(c.Version)
	if err := dw.Err(); err != nil {
		return err
	}
	_, err := c.TLVs.WriteTo(w)
	return err
}

// Cookie returns the authorization cookie, if present.
func (c *LoginCmd) Cookie() ([]byte, bool) {
	t, ok := c.TLVs.First(TlvLoginCookie)
	if !ok {
		return nil, false
	}
	return t.Data.Bytes(), true
}

// ErrorCmd is a channel 3 packet. Its payload has no documented structure
// and is kept as received.
type ErrorCmd struct {
	Data data.ByteBlock
}

// DecodeErrorCmd decodes a channel 3 packet.
func DecodeErrorCmd(p Packet) (Command, error) {
	return &ErrorCmd{Data: p.Data}, nil
}

func (c *ErrorCmd) Channel() uint8 { return ChannelError }

func (c *ErrorCmd) WriteData(w io.Writer) error {
	_, err := c.Data.WriteTo(w)
	return err
}

// Close channel TLV types.
const (
	TlvCloseCode uint16 = 0x0009
	TlvCloseURL  uint16 = 0x000b
)

// NoCode marks a CloseCmd that carries no disconnect code. It is distinct
// from code zero.
const NoCode = -1

// Disconnect codes seen in close commands.
const (
	CloseCodeOtherLogin = 0x0001
)

// CloseCmd is a channel 4 packet announcing the end of a connection.
type CloseCmd struct {
	// Code is the disconnect code, or NoCode when none was sent.
	Code int
	// URL is a page describing the disconnect, or nil when absent. An empty
	// URL TLV decodes to a pointer to "".
	URL *string
	// Extra holds any other TLVs, written after the code and url.
	Extra tlv.Chain
}

// NewCloseCmd returns a CloseCmd. Pass NoCode and "" to omit both TLVs.
func NewCloseCmd(code int, url string) *CloseCmd {
	c := &CloseCmd{Code: code}
	if url != "" {
		c.URL = &url
	}
	return c
}

// URLString returns the URL, or "" when absent.
func (c *CloseCmd) URLString() string {
	if c.URL == nil {
		return ""
	}
	return *c.URL
}

// DecodeCloseCmd decodes a channel 4 packet.
func DecodeCloseCmd(p Packet) (Command, error) {
	chain := tlv.ReadChain(p.Data)
	cmd := &CloseCmd{Code: NoCode}
	extra := tlv.NewMutableChain()
	for _, t := range chain.All() {
		switch t.Type {
		case TlvCloseCode:
			if v, ok := t.UShort(); ok {
				cmd.Code = int(v)
				continue
			}
		case TlvCloseURL:
			url := t.String()
			cmd.URL = &url
			continue
		}
		extra.Add(t)
	}
	cmd.Extra = extra.Immutable()
	return cmd, nil
}

func (c *CloseCmd) Channel() uint8 { return ChannelClose }

// TLVs returns the chain this command serializes to.
func (c *CloseCmd) TLVs() tlv.Chain {
	m := tlv.NewMutableChain()
	if c.Code != NoCode {
		m.Add(tlv.NewUShort(TlvCloseCode, uint16(c.Code)))
	}
	if c.URL != nil {
		m.Add(tlv.NewString(TlvCloseURL, *c.URL))
	}
	m.AddAll(c.Extra)
	return m.Immutable()
}

func (c *CloseCmd) WriteData(w io.Writer) error {
	if c.Code != NoCode && (c.Code < 0 || c.Code > data.MaxUShort) {
		return oops.Wrapf(data.ErrValueRange, "close code %d", c.Code)
	}
	_, err := c.TLVs().WriteTo(w)
	return err
}

// KeepaliveCmd is an empty channel 5 packet.
type KeepaliveCmd struct{}

// DecodeKeepaliveCmd decodes a channel 5 packet. Any payload is ignored.
func DecodeKeepaliveCmd(Packet) (Command, error) {
	return &KeepaliveCmd{}, nil
}

func (c *KeepaliveCmd) Channel() uint8 { return ChannelKeepalive }

func (c *KeepaliveCmd) WriteData(io.Writer) error { return nil }

// GenericCmd carries the raw payload of a channel with no typed decoder.
type GenericCmd struct {
	Chan uint8
	Data data.ByteBlock
}

func (c *GenericCmd) Channel() uint8 { return c.Chan }

func (c *GenericCmd) WriteData(w io.Writer) error {
	_, err := c.Data.WriteTo(w)
	return err
}
