// Package icbm implements SNAC family 0x0004, inter-client basic messages:
// instant messages on channel 1, rendezvous proposals on channel 2, acks,
// warnings and typing notifications.
package icbm

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyIcbm

// Subtypes.
const (
	SubtypeSetParamInfo     uint16 = 0x0002
	SubtypeParamInfoRequest uint16 = 0x0004
	SubtypeParamInfo        uint16 = 0x0005
	SubtypeSend             uint16 = 0x0006
	SubtypeRecv             uint16 = 0x0007
	SubtypeWarn             uint16 = 0x0008
	SubtypeWarnAck          uint16 = 0x0009
	SubtypeMissedMessages   uint16 = 0x000a
	SubtypeClientError      uint16 = 0x000b
	SubtypeMessageAck       uint16 = 0x000c
	SubtypeTyping           uint16 = 0x0014
)

// ICBM channels.
const (
	ChannelIM  uint16 = 0x0001
	ChannelRV  uint16 = 0x0002
	ChannelICQ uint16 = 0x0004
)

// ICBM TLV types.
const (
	TlvMessage      uint16 = 0x0002
	TlvAckRequest   uint16 = 0x0003
	TlvAutoResponse uint16 = 0x0004
	TlvRendezvous   uint16 = 0x0005
	TlvStoreOffline uint16 = 0x0006
)

// Typing states.
const (
	TypingNone    uint16 = 0x0000
	TypingTyped   uint16 = 0x0001
	TypingStarted uint16 = 0x0002
)

// CookieSize is the size of an ICBM message cookie.
const CookieSize = 8

// Cookie identifies a message and, on channel 2, a rendezvous session.
type Cookie [CookieSize]byte

// NewCookie returns a random cookie.
func NewCookie() Cookie {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		log.WithError(err).Warn("cookie_rand_failed")
	}
	return c
}

func (c Cookie) String() string { return hex.EncodeToString(c[:]) }

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeSetParamInfo, decodeParamInfo(SubtypeSetParamInfo))
	b.Register(Family, SubtypeParamInfoRequest, DecodeParamInfoRequest)
	b.Register(Family, SubtypeParamInfo, decodeParamInfo(SubtypeParamInfo))
	b.Register(Family, SubtypeSend, DecodeSend)
	b.Register(Family, SubtypeRecv, DecodeRecv)
	b.Register(Family, SubtypeWarn, DecodeWarn)
	b.Register(Family, SubtypeWarnAck, DecodeWarnAck)
	b.Register(Family, SubtypeMissedMessages, DecodeMissedMessages)
	b.Register(Family, SubtypeClientError, DecodeClientError)
	b.Register(Family, SubtypeMessageAck, DecodeMessageAck)
	b.Register(Family, SubtypeTyping, DecodeTyping)
}

// header is the common prefix of ICBMs: cookie and channel.
func readHeader(r *data.Reader) (Cookie, uint16) {
	var c Cookie
	r.Fixed(c[:])
	return c, r.UShort()
}

func writeHeader(w *data.Writer, c Cookie, channel uint16) {
	w.Write(c[:])
	w.UShort(channel)
}

// SendIm sends an instant message on channel 1.
type SendIm struct {
	Cookie       Cookie
	Screenname   string
	Message      Message
	AckRequested bool
	AutoResponse bool
	StoreOffline bool
	// Extra holds TLVs without a field above, written after them.
	Extra tlv.Chain
}

// NewSendIm returns an IM to sn with a fresh cookie.
func NewSendIm(sn, text string) (*SendIm, error) {
	msg, err := NewMessage(text)
	if err != nil {
		return nil, err
	}
	return &SendIm{Cookie: NewCookie(), Screenname: sn, Message: msg}, nil
}

func (c *SendIm) Family() uint16  { return Family }
func (c *SendIm) Subtype() uint16 { return SubtypeSend }

func (c *SendIm) WriteData(w io.Writer) error {
	block, err := c.Message.Bytes()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, ChannelIM)
	dw.String8(c.Screenname)
	if err := dw.Err(); err != nil {
		return err
	}
	m := tlv.NewMutableChain().Add(tlv.New(TlvMessage, block))
	if c.AckRequested {
		m.Add(tlv.NewEmpty(TlvAckRequest))
	}
	if c.AutoResponse {
		m.Add(tlv.NewEmpty(TlvAutoResponse))
	}
	if c.StoreOffline {
		m.Add(tlv.NewEmpty(TlvStoreOffline))
	}
	m.AddAll(c.Extra)
	_, err = m.Immutable().WriteTo(w)
	return err
}

// RecvIm is an instant message delivered by the server.
type RecvIm struct {
	Cookie       Cookie
	Sender       snaccmd.FullUserInfo
	Message      Message
	AutoResponse bool
	TLVs         tlv.Chain
}

func (c *RecvIm) Family() uint16  { return Family }
func (c *RecvIm) Subtype() uint16 { return SubtypeRecv }

func (c *RecvIm) WriteData(w io.Writer) error {
	block, err := c.Message.Bytes()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, ChannelIM)
	if err := dw.Err(); err != nil {
		return err
	}
	if _, err := c.Sender.WriteTo(w); err != nil {
		return err
	}
	m := tlv.NewMutableChain().Add(tlv.New(TlvMessage, block))
	if c.AutoResponse {
		m.Add(tlv.NewEmpty(TlvAutoResponse))
	}
	_, err = m.Immutable().WriteTo(w)
	return err
}

// RvBlock is the channel-2 rendezvous payload carried in TLV 0x05:
//
//	status:u16 | cookie[8] | capability[16] | tlvs
//
// Package rv gives it typed meaning.
type RvBlock struct {
	Status     uint16
	Cookie     Cookie
	Capability uuid.UUID
	TLVs       tlv.Chain
}

// ReadRvBlock decodes a rendezvous payload.
func ReadRvBlock(b data.ByteBlock) (RvBlock, error) {
	var rv RvBlock
	r := data.NewReader(b)
	rv.Status = r.UShort()
	r.Fixed(rv.Cookie[:])
	r.Fixed(rv.Capability[:])
	if err := r.Err(); err != nil {
		return RvBlock{}, oops.Wrapf(err, "rendezvous block")
	}
	rv.TLVs = tlv.ReadChain(r.Rest())
	return rv, nil
}

// Bytes encodes the rendezvous payload.
func (rv RvBlock) Bytes() ([]byte, error) {
	chain, err := rv.TLVs.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2+CookieSize+16+len(chain))
	out = append(out, data.UShortBytes(rv.Status)...)
	out = append(out, rv.Cookie[:]...)
	out = append(out, rv.Capability[:]...)
	return append(out, chain...), nil
}

// SendRv sends a rendezvous proposal, acceptance or cancellation.
type SendRv struct {
	Cookie       Cookie
	Screenname   string
	Rv           RvBlock
	AckRequested bool
}

func (c *SendRv) Family() uint16  { return Family }
func (c *SendRv) Subtype() uint16 { return SubtypeSend }

func (c *SendRv) WriteData(w io.Writer) error {
	block, err := c.Rv.Bytes()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, ChannelRV)
	dw.String8(c.Screenname)
	if err := dw.Err(); err != nil {
		return err
	}
	m := tlv.NewMutableChain().Add(tlv.New(TlvRendezvous, block))
	if c.AckRequested {
		m.Add(tlv.NewEmpty(TlvAckRequest))
	}
	_, err = m.Immutable().WriteTo(w)
	return err
}

// RecvRv is a rendezvous message delivered by the server.
type RecvRv struct {
	Cookie Cookie
	Sender snaccmd.FullUserInfo
	Rv     RvBlock
	TLVs   tlv.Chain
}

func (c *RecvRv) Family() uint16  { return Family }
func (c *RecvRv) Subtype() uint16 { return SubtypeRecv }

func (c *RecvRv) WriteData(w io.Writer) error {
	block, err := c.Rv.Bytes()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, ChannelRV)
	if err := dw.Err(); err != nil {
		return err
	}
	if _, err := c.Sender.WriteTo(w); err != nil {
		return err
	}
	_, err = tlv.NewChain(tlv.New(TlvRendezvous, block)).WriteTo(w)
	return err
}

// Generic is an ICBM on a channel without typed support. Sender is set on
// received messages, Screenname on sent ones.
type Generic struct {
	Sub        uint16
	Cookie     Cookie
	Chan       uint16
	Screenname string
	Sender     *snaccmd.FullUserInfo
	TLVs       tlv.Chain
}

func (c *Generic) Family() uint16  { return Family }
func (c *Generic) Subtype() uint16 { return c.Sub }

func (c *Generic) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, c.Chan)
	if c.Sender == nil {
		dw.String8(c.Screenname)
	}
	if err := dw.Err(); err != nil {
		return err
	}
	if c.Sender != nil {
		if _, err := c.Sender.WriteTo(w); err != nil {
			return err
		}
	}
	_, err := c.TLVs.WriteTo(w)
	return err
}

// DecodeSend decodes an outgoing ICBM, choosing the type by channel.
func DecodeSend(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cookie, channel := readHeader(r)
	sn := r.String8()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "send icbm header")
	}
	chain := tlv.ReadChain(r.Rest())
	switch channel {
	case ChannelIM:
		c := &SendIm{
			Cookie:       cookie,
			Screenname:   sn,
			AckRequested: chain.Has(TlvAckRequest),
			AutoResponse: chain.Has(TlvAutoResponse),
			StoreOffline: chain.Has(TlvStoreOffline),
		}
		extra := chain.Mutable()
		for _, typ := range []uint16{TlvMessage, TlvAckRequest, TlvAutoResponse, TlvStoreOffline} {
			extra.Remove(typ)
		}
		c.Extra = extra.Immutable()
		if t, ok := chain.First(TlvMessage); ok {
			msg, err := ParseMessage(t.Data)
			if err != nil {
				return nil, err
			}
			c.Message = msg
		}
		return c, nil
	case ChannelRV:
		c := &SendRv{Cookie: cookie, Screenname: sn, AckRequested: chain.Has(TlvAckRequest)}
		t, ok := chain.First(TlvRendezvous)
		if !ok {
			return nil, oops.Wrapf(data.ErrShortRead, "rendezvous icbm without tlv 0x%04x", TlvRendezvous)
		}
		rv, err := ReadRvBlock(t.Data)
		if err != nil {
			return nil, err
		}
		c.Rv = rv
		return c, nil
	}
	return &Generic{Sub: SubtypeSend, Cookie: cookie, Chan: channel, Screenname: sn, TLVs: chain}, nil
}

// DecodeRecv decodes an incoming ICBM, choosing the type by channel.
func DecodeRecv(p snac.Packet) (snac.Command, error) {
	body := p.Payload()
	r := data.NewReader(body)
	cookie, channel := readHeader(r)
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "recv icbm header")
	}
	sender, n, err := snaccmd.ReadFullUserInfo(body.Sub(r.Pos()))
	if err != nil {
		return nil, oops.Wrapf(err, "recv icbm sender")
	}
	chain := tlv.ReadChain(body.Sub(r.Pos() + n))
	switch channel {
	case ChannelIM:
		c := &RecvIm{Cookie: cookie, Sender: sender, AutoResponse: chain.Has(TlvAutoResponse), TLVs: chain}
		if t, ok := chain.First(TlvMessage); ok {
			msg, err := ParseMessage(t.Data)
			if err != nil {
				return nil, err
			}
			c.Message = msg
		}
		return c, nil
	case ChannelRV:
		t, ok := chain.First(TlvRendezvous)
		if !ok {
			return nil, oops.Wrapf(data.ErrShortRead, "rendezvous icbm without tlv 0x%04x", TlvRendezvous)
		}
		rv, err := ReadRvBlock(t.Data)
		if err != nil {
			return nil, err
		}
		return &RecvRv{Cookie: cookie, Sender: sender, Rv: rv, TLVs: chain}, nil
	}
	log.WithFields(logger.Fields{"at": "icbm.DecodeRecv", "channel": channel}).Debug("generic_icbm_channel")
	return &Generic{Sub: SubtypeRecv, Cookie: cookie, Chan: channel, Sender: &sender, TLVs: chain}, nil
}
