// Package chat implements SNAC family 0x000e, used on chat room
// connections for membership updates and room messages.
package chat

import (
	"bytes"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/chatnav"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyChat

// Subtypes.
const (
	SubtypeRoomInfoUpdate uint16 = 0x0002
	SubtypeUsersJoined    uint16 = 0x0003
	SubtypeUsersLeft      uint16 = 0x0004
	SubtypeSendMsg        uint16 = 0x0005
	SubtypeRecvMsg        uint16 = 0x0006
)

// ChannelChat is the ICBM channel of room messages.
const ChannelChat uint16 = 0x0003

// Chat message TLV types.
const (
	TlvPublic  uint16 = 0x0001
	TlvSender  uint16 = 0x0003
	TlvMsgInfo uint16 = 0x0005
	TlvReflect uint16 = 0x0006
)

// Message info TLV types.
const (
	TlvMsgText     uint16 = 0x0001
	TlvMsgCharset  uint16 = 0x0002
	TlvMsgLanguage uint16 = 0x0003
)

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeRoomInfoUpdate, DecodeRoomInfoUpdate)
	b.Register(Family, SubtypeUsersJoined, decodeUsers(SubtypeUsersJoined))
	b.Register(Family, SubtypeUsersLeft, decodeUsers(SubtypeUsersLeft))
	b.Register(Family, SubtypeSendMsg, DecodeSendMsg)
	b.Register(Family, SubtypeRecvMsg, DecodeRecvMsg)
}

// RoomInfoUpdate describes the room a chat connection is joined to.
type RoomInfoUpdate struct {
	Room chatnav.RoomInfo
}

// DecodeRoomInfoUpdate decodes a RoomInfoUpdate.
func DecodeRoomInfoUpdate(p snac.Packet) (snac.Command, error) {
	ri, _, err := chatnav.ReadRoomInfo(p.Payload())
	if err != nil {
		return nil, err
	}
	return &RoomInfoUpdate{Room: ri}, nil
}

func (c *RoomInfoUpdate) Family() uint16  { return Family }
func (c *RoomInfoUpdate) Subtype() uint16 { return SubtypeRoomInfoUpdate }

func (c *RoomInfoUpdate) WriteData(w io.Writer) error {
	_, err := c.Room.WriteTo(w)
	return err
}

// Users lists members who joined or left the room.
type Users struct {
	Sub   uint16
	Users []snaccmd.FullUserInfo
}

func decodeUsers(subtype uint16) snac.DecodeFunc {
	return func(p snac.Packet) (snac.Command, error) {
		return &Users{Sub: subtype, Users: snaccmd.ReadUserInfos(p.Payload())}, nil
	}
}

func (c *Users) Family() uint16  { return Family }
func (c *Users) Subtype() uint16 { return c.Sub }

func (c *Users) WriteData(w io.Writer) error {
	for _, u := range c.Users {
		if _, err := u.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// Message is the text of a room message with its charset and language.
type Message struct {
	Text     []byte
	Charset  string
	Language string
}

// NewMessage encodes text in the narrowest charset that holds it.
func NewMessage(text, language string) (Message, error) {
	charset := data.MinimalCharset(text)
	b, err := data.EncodeString(text, charset)
	if err != nil {
		return Message{}, err
	}
	return Message{Text: b, Charset: charset, Language: language}, nil
}

// Decode decodes the message text.
func (m Message) Decode() (string, error) {
	return data.DecodeString(m.Text, m.Charset)
}

func readMessage(b data.ByteBlock) Message {
	chain := tlv.ReadChain(b)
	var m Message
	if t, ok := chain.First(TlvMsgText); ok {
		m.Text = t.Data.Bytes()
	}
	m.Charset, _ = chain.FirstString(TlvMsgCharset)
	m.Language, _ = chain.FirstString(TlvMsgLanguage)
	return m
}

func (m Message) tlv() (tlv.Tlv, error) {
	mc := tlv.NewMutableChain().Add(tlv.New(TlvMsgText, m.Text))
	if m.Charset != "" {
		mc.Add(tlv.NewString(TlvMsgCharset, m.Charset))
	}
	if m.Language != "" {
		mc.Add(tlv.NewString(TlvMsgLanguage, m.Language))
	}
	b, err := mc.Immutable().Bytes()
	if err != nil {
		return tlv.Tlv{}, err
	}
	return tlv.New(TlvMsgInfo, b), nil
}

// SendMsg posts a message to the room.
type SendMsg struct {
	Cookie  icbm.Cookie
	Message Message
	// Reflect asks the server to echo the message back to the sender.
	Reflect bool
}

// NewSendMsg returns a reflected room message with a fresh cookie.
func NewSendMsg(msg Message) *SendMsg {
	return &SendMsg{Cookie: icbm.NewCookie(), Message: msg, Reflect: true}
}

// DecodeSendMsg decodes a SendMsg.
func DecodeSendMsg(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &SendMsg{}
	r.Fixed(c.Cookie[:])
	r.UShort()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "chat message header")
	}
	chain := tlv.ReadChain(r.Rest())
	c.Reflect = chain.Has(TlvReflect)
	if t, ok := chain.First(TlvMsgInfo); ok {
		c.Message = readMessage(t.Data)
	}
	return c, nil
}

func (c *SendMsg) Family() uint16  { return Family }
func (c *SendMsg) Subtype() uint16 { return SubtypeSendMsg }

func (c *SendMsg) WriteData(w io.Writer) error {
	info, err := c.Message.tlv()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	dw.Write(c.Cookie[:])
	dw.UShort(ChannelChat)
	if err := dw.Err(); err != nil {
		return err
	}
	m := tlv.NewMutableChain().Add(tlv.NewEmpty(TlvPublic))
	if c.Reflect {
		m.Add(tlv.NewEmpty(TlvReflect))
	}
	m.Add(info)
	_, err = m.Immutable().WriteTo(w)
	return err
}

// RecvMsg is a room message delivered by the server.
type RecvMsg struct {
	Cookie  icbm.Cookie
	Sender  *snaccmd.FullUserInfo
	Message Message
}

// DecodeRecvMsg decodes a RecvMsg.
func DecodeRecvMsg(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &RecvMsg{}
	r.Fixed(c.Cookie[:])
	r.UShort()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "chat message header")
	}
	chain := tlv.ReadChain(r.Rest())
	if t, ok := chain.First(TlvSender); ok {
		u, _, err := snaccmd.ReadFullUserInfo(t.Data)
		if err != nil {
			return nil, err
		}
		c.Sender = &u
	}
	if t, ok := chain.First(TlvMsgInfo); ok {
		c.Message = readMessage(t.Data)
	}
	return c, nil
}

func (c *RecvMsg) Family() uint16  { return Family }
func (c *RecvMsg) Subtype() uint16 { return SubtypeRecvMsg }

func (c *RecvMsg) WriteData(w io.Writer) error {
	info, err := c.Message.tlv()
	if err != nil {
		return err
	}
	dw := data.NewWriter(w)
	dw.Write(c.Cookie[:])
	dw.UShort(ChannelChat)
	if err := dw.Err(); err != nil {
		return err
	}
	m := tlv.NewMutableChain()
	if c.Sender != nil {
		var buf bytes.Buffer
		if _, err := c.Sender.WriteTo(&buf); err != nil {
			return err
		}
		m.Add(tlv.New(TlvSender, buf.Bytes()))
	}
	m.Add(tlv.NewEmpty(TlvPublic))
	m.Add(info)
	_, err = m.Immutable().WriteTo(w)
	return err
}
