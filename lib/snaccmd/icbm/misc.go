package icbm

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// ParamInfo flag bits.
const (
	ParamFlagChannelMsgs   uint32 = 0x00000001
	ParamFlagMissedCalls   uint32 = 0x00000002
	ParamFlagTypingNotices uint32 = 0x00000008
)

// ParamInfo carries the ICBM parameters of a channel. The server sends it
// as 0x05; the client echoes adjusted values with 0x02.
type ParamInfo struct {
	Sub                uint16
	Channel            uint16
	Flags              uint32
	MaxMessageLen      uint16
	MaxSenderWarning   uint16
	MaxReceiverWarn    uint16
	MinMessageInterval uint32
}

// NewSetParamInfo returns the parameters set by the client at startup.
func NewSetParamInfo(server *ParamInfo) *ParamInfo {
	p := &ParamInfo{
		Sub:                SubtypeSetParamInfo,
		Flags:              ParamFlagChannelMsgs | ParamFlagMissedCalls | ParamFlagTypingNotices,
		MaxMessageLen:      8000,
		MaxSenderWarning:   999,
		MaxReceiverWarn:    999,
		MinMessageInterval: 0,
	}
	if server != nil && server.MaxMessageLen != 0 {
		p.MaxMessageLen = server.MaxMessageLen
	}
	return p
}

func decodeParamInfo(subtype uint16) snac.DecodeFunc {
	return func(p snac.Packet) (snac.Command, error) {
		r := snaccmd.Body(p)
		c := &ParamInfo{
			Sub:                subtype,
			Channel:            r.UShort(),
			Flags:              r.UInt(),
			MaxMessageLen:      r.UShort(),
			MaxSenderWarning:   r.UShort(),
			MaxReceiverWarn:    r.UShort(),
			MinMessageInterval: r.UInt(),
		}
		if err := r.Err(); err != nil {
			return nil, oops.Wrapf(err, "icbm params")
		}
		return c, nil
	}
}

func (c *ParamInfo) Family() uint16  { return Family }
func (c *ParamInfo) Subtype() uint16 { return c.Sub }

func (c *ParamInfo) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Channel)
	dw.UInt(c.Flags)
	dw.UShort(c.MaxMessageLen)
	dw.UShort(c.MaxSenderWarning)
	dw.UShort(c.MaxReceiverWarn)
	dw.UInt(c.MinMessageInterval)
	return dw.Err()
}

// ParamInfoRequest asks for the ICBM parameters.
type ParamInfoRequest struct{}

// DecodeParamInfoRequest decodes a ParamInfoRequest.
func DecodeParamInfoRequest(snac.Packet) (snac.Command, error) { return &ParamInfoRequest{}, nil }

func (c *ParamInfoRequest) Family() uint16            { return Family }
func (c *ParamInfoRequest) Subtype() uint16           { return SubtypeParamInfoRequest }
func (c *ParamInfoRequest) WriteData(io.Writer) error { return nil }

// MessageAck confirms the server accepted an ICBM sent with an ack request.
type MessageAck struct {
	Cookie     Cookie
	Channel    uint16
	Screenname string
}

// DecodeMessageAck decodes a MessageAck.
func DecodeMessageAck(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &MessageAck{}
	c.Cookie, c.Channel = readHeader(r)
	c.Screenname = r.String8()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "message ack")
	}
	return c, nil
}

func (c *MessageAck) Family() uint16  { return Family }
func (c *MessageAck) Subtype() uint16 { return SubtypeMessageAck }

func (c *MessageAck) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, c.Channel)
	dw.String8(c.Screenname)
	return dw.Err()
}

// Typing is a typing notification. The cookie is zero on the wire.
type Typing struct {
	Channel    uint16
	Screenname string
	State      uint16
}

// NewTyping returns a channel-1 typing notification to sn.
func NewTyping(sn string, state uint16) *Typing {
	return &Typing{Channel: ChannelIM, Screenname: sn, State: state}
}

// DecodeTyping decodes a Typing.
func DecodeTyping(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &Typing{}
	_, c.Channel = readHeader(r)
	c.Screenname = r.String8()
	c.State = r.UShort()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "typing notification")
	}
	return c, nil
}

func (c *Typing) Family() uint16  { return Family }
func (c *Typing) Subtype() uint16 { return SubtypeTyping }

func (c *Typing) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	writeHeader(dw, Cookie{}, c.Channel)
	dw.String8(c.Screenname)
	dw.UShort(c.State)
	return dw.Err()
}

// Warn asks the server to raise a user's warning level.
type Warn struct {
	Anonymous  bool
	Screenname string
}

// DecodeWarn decodes a Warn.
func DecodeWarn(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &Warn{Anonymous: r.UShort() != 0, Screenname: r.String8()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "warn")
	}
	return c, nil
}

func (c *Warn) Family() uint16  { return Family }
func (c *Warn) Subtype() uint16 { return SubtypeWarn }

func (c *Warn) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	var anon uint16
	if c.Anonymous {
		anon = 1
	}
	dw.UShort(anon)
	dw.String8(c.Screenname)
	return dw.Err()
}

// WarnAck reports the outcome of a Warn.
type WarnAck struct {
	Increase uint16
	NewLevel uint16
}

// DecodeWarnAck decodes a WarnAck.
func DecodeWarnAck(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &WarnAck{Increase: r.UShort(), NewLevel: r.UShort()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "warn ack")
	}
	return c, nil
}

func (c *WarnAck) Family() uint16  { return Family }
func (c *WarnAck) Subtype() uint16 { return SubtypeWarnAck }

func (c *WarnAck) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Increase)
	dw.UShort(c.NewLevel)
	return dw.Err()
}

// Missed-message reasons.
const (
	MissedInvalid      uint16 = 0x0000
	MissedTooLarge     uint16 = 0x0001
	MissedRateExceeded uint16 = 0x0002
	MissedSenderEvil   uint16 = 0x0003
	MissedSelfEvil     uint16 = 0x0004
)

// Missed records messages from one sender the server dropped.
type Missed struct {
	Channel uint16
	Sender  snaccmd.FullUserInfo
	Count   uint16
	Reason  uint16
}

// MissedMessages lists dropped messages.
type MissedMessages struct {
	Missed []Missed
}

// DecodeMissedMessages decodes MissedMessages. A truncated trailing entry
// is dropped.
func DecodeMissedMessages(p snac.Packet) (snac.Command, error) {
	body := p.Payload()
	c := &MissedMessages{}
	off := 0
	for off < body.Len() {
		r := data.NewReader(body.Sub(off))
		channel := r.UShort()
		if r.Err() != nil {
			break
		}
		user, n, err := snaccmd.ReadFullUserInfo(body.Sub(off + r.Pos()))
		if err != nil {
			break
		}
		tail := data.NewReader(body.Sub(off + r.Pos() + n))
		m := Missed{Channel: channel, Sender: user, Count: tail.UShort(), Reason: tail.UShort()}
		if tail.Err() != nil {
			break
		}
		c.Missed = append(c.Missed, m)
		off += r.Pos() + n + tail.Pos()
	}
	return c, nil
}

func (c *MissedMessages) Family() uint16  { return Family }
func (c *MissedMessages) Subtype() uint16 { return SubtypeMissedMessages }

func (c *MissedMessages) WriteData(w io.Writer) error {
	for _, m := range c.Missed {
		dw := data.NewWriter(w)
		dw.UShort(m.Channel)
		if err := dw.Err(); err != nil {
			return err
		}
		if _, err := m.Sender.WriteTo(w); err != nil {
			return err
		}
		dw.UShort(m.Count)
		dw.UShort(m.Reason)
		if err := dw.Err(); err != nil {
			return err
		}
	}
	return nil
}

// ClientError is a client-to-client error relayed by the server, such as a
// declined rendezvous:
//
//	cookie[8] | channel:u16 | sn_len:u8 | sn | code:u16 | extra
type ClientError struct {
	Cookie     Cookie
	Channel    uint16
	Screenname string
	Code       uint16
	Extra      []byte
}

// DecodeClientError decodes a ClientError.
func DecodeClientError(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &ClientError{}
	c.Cookie, c.Channel = readHeader(r)
	c.Screenname = r.String8()
	c.Code = r.UShort()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "client error")
	}
	c.Extra = r.Rest().Bytes()
	return c, nil
}

func (c *ClientError) Family() uint16  { return Family }
func (c *ClientError) Subtype() uint16 { return SubtypeClientError }

func (c *ClientError) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	writeHeader(dw, c.Cookie, c.Channel)
	dw.String8(c.Screenname)
	dw.UShort(c.Code)
	dw.Write(c.Extra)
	return dw.Err()
}
