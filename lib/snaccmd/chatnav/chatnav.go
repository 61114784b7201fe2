// Package chatnav implements SNAC family 0x000d, chat navigation: exchange
// limits, room lookups and room creation.
package chatnav

import (
	"bytes"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyChatNav

// Subtypes.
const (
	SubtypeRightsRequest   uint16 = 0x0002
	SubtypeRoomInfoRequest uint16 = 0x0004
	SubtypeCreateRoom      uint16 = 0x0008
	SubtypeNavInfo         uint16 = 0x0009
)

// NavInfo TLV types.
const (
	TlvMaxRooms     uint16 = 0x0002
	TlvExchangeInfo uint16 = 0x0003
	TlvRoomInfo     uint16 = 0x0004
)

// Room and exchange TLV types.
const (
	TlvRoomName     uint16 = 0x00d3
	TlvRoomCharset  uint16 = 0x00d6
	TlvRoomLanguage uint16 = 0x00d7
)

// CreateCookie is the placeholder cookie of a room creation request.
const CreateCookie = "create"

// Room detail levels.
const (
	DetailShort uint8 = 0x01
	DetailFull  uint8 = 0x02
)

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeRightsRequest, DecodeRightsRequest)
	b.Register(Family, SubtypeRoomInfoRequest, DecodeRoomInfoRequest)
	b.Register(Family, SubtypeCreateRoom, DecodeCreateRoom)
	b.Register(Family, SubtypeNavInfo, DecodeNavInfo)
}

// RoomID names a chat room:
//
//	exchange:u16 | cookie_len:u8 | cookie | instance:u16
type RoomID struct {
	Exchange uint16
	Cookie   string
	Instance uint16
}

// RoomInfo is a room ID with its detail level and TLVs.
type RoomInfo struct {
	RoomID
	Detail uint8
	TLVs   tlv.Chain
}

// Name returns the room's display name.
func (ri RoomInfo) Name() string {
	s, _ := ri.TLVs.FirstString(TlvRoomName)
	return s
}

// ReadRoomInfo decodes a room info block and returns the bytes consumed.
func ReadRoomInfo(b data.ByteBlock) (RoomInfo, int, error) {
	r := data.NewReader(b)
	ri := RoomInfo{RoomID: RoomID{Exchange: r.UShort(), Cookie: r.String8(), Instance: r.UShort()}}
	ri.Detail = r.UByte()
	count := int(r.UShort())
	if err := r.Err(); err != nil {
		return RoomInfo{}, 0, oops.Wrapf(err, "room info")
	}
	chain, n := tlv.ReadChainCount(b.Sub(r.Pos()), count)
	ri.TLVs = chain
	return ri, r.Pos() + n, nil
}

// WriteTo writes the room info block.
func (ri RoomInfo) WriteTo(w io.Writer) (int64, error) {
	dw := data.NewWriter(w)
	dw.UShort(ri.Exchange)
	dw.String8(ri.Cookie)
	dw.UShort(ri.Instance)
	dw.UByte(ri.Detail)
	dw.UShort(uint16(ri.TLVs.Len()))
	if err := dw.Err(); err != nil {
		return dw.Count(), err
	}
	n, err := ri.TLVs.WriteTo(w)
	return dw.Count() + n, err
}

// ExchangeInfo describes one chat exchange:
//
//	number:u16 | tlv_count:u16 | tlvs
type ExchangeInfo struct {
	Number uint16
	TLVs   tlv.Chain
}

// Name returns the exchange's display name.
func (e ExchangeInfo) Name() string {
	s, _ := e.TLVs.FirstString(TlvRoomName)
	return s
}

func readExchangeInfo(b data.ByteBlock) (ExchangeInfo, error) {
	r := data.NewReader(b)
	e := ExchangeInfo{Number: r.UShort()}
	count := int(r.UShort())
	if err := r.Err(); err != nil {
		return ExchangeInfo{}, oops.Wrapf(err, "exchange info")
	}
	e.TLVs, _ = tlv.ReadChainCount(b.Sub(r.Pos()), count)
	return e, nil
}

func (e ExchangeInfo) bytes() ([]byte, error) {
	chain, err := e.TLVs.Bytes()
	if err != nil {
		return nil, err
	}
	out := append(data.UShortBytes(e.Number), data.UShortBytes(uint16(e.TLVs.Len()))...)
	return append(out, chain...), nil
}

// RightsRequest asks for chat navigation limits and exchanges.
type RightsRequest struct{}

// DecodeRightsRequest decodes a RightsRequest.
func DecodeRightsRequest(snac.Packet) (snac.Command, error) { return &RightsRequest{}, nil }

func (c *RightsRequest) Family() uint16            { return Family }
func (c *RightsRequest) Subtype() uint16           { return SubtypeRightsRequest }
func (c *RightsRequest) WriteData(io.Writer) error { return nil }

// RoomInfoRequest asks for a room's details.
type RoomInfoRequest struct {
	RoomID
	Detail uint8
}

// DecodeRoomInfoRequest decodes a RoomInfoRequest.
func DecodeRoomInfoRequest(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &RoomInfoRequest{RoomID: RoomID{Exchange: r.UShort(), Cookie: r.String8(), Instance: r.UShort()}}
	c.Detail = r.UByte()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "room info request")
	}
	return c, nil
}

func (c *RoomInfoRequest) Family() uint16  { return Family }
func (c *RoomInfoRequest) Subtype() uint16 { return SubtypeRoomInfoRequest }

func (c *RoomInfoRequest) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Exchange)
	dw.String8(c.Cookie)
	dw.UShort(c.Instance)
	dw.UByte(c.Detail)
	return dw.Err()
}

// CreateRoom asks the server to create, or join if it exists, a room. The
// reply is a NavInfo with the room's real cookie.
type CreateRoom struct {
	RoomInfo
}

// NewCreateRoom returns a creation request for a room called name.
func NewCreateRoom(exchange uint16, name, charset, language string) *CreateRoom {
	return &CreateRoom{RoomInfo{
		RoomID: RoomID{Exchange: exchange, Cookie: CreateCookie, Instance: 0xffff},
		Detail: DetailShort,
		TLVs: tlv.NewChain(
			tlv.NewString(TlvRoomName, name),
			tlv.NewString(TlvRoomCharset, charset),
			tlv.NewString(TlvRoomLanguage, language),
		),
	}}
}

// DecodeCreateRoom decodes a CreateRoom.
func DecodeCreateRoom(p snac.Packet) (snac.Command, error) {
	ri, _, err := ReadRoomInfo(p.Payload())
	if err != nil {
		return nil, err
	}
	return &CreateRoom{ri}, nil
}

func (c *CreateRoom) Family() uint16  { return Family }
func (c *CreateRoom) Subtype() uint16 { return SubtypeCreateRoom }

func (c *CreateRoom) WriteData(w io.Writer) error {
	_, err := c.RoomInfo.WriteTo(w)
	return err
}

// NavInfo answers rights, room info and creation requests. MaxRooms and
// Room come from the first matching TLV; every exchange TLV is kept.
type NavInfo struct {
	MaxRooms    uint8
	HasMaxRooms bool
	Exchanges   []ExchangeInfo
	Room        *RoomInfo
}

// DecodeNavInfo decodes a NavInfo.
func DecodeNavInfo(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	c := &NavInfo{}
	if t, ok := chain.First(TlvMaxRooms); ok && t.Data.Len() >= 1 {
		c.MaxRooms = t.Data.At(0)
		c.HasMaxRooms = true
	}
	for _, t := range chain.Get(TlvExchangeInfo) {
		e, err := readExchangeInfo(t.Data)
		if err != nil {
			return nil, err
		}
		c.Exchanges = append(c.Exchanges, e)
	}
	if t, ok := chain.First(TlvRoomInfo); ok {
		ri, _, err := ReadRoomInfo(t.Data)
		if err != nil {
			return nil, err
		}
		c.Room = &ri
	}
	return c, nil
}

func (c *NavInfo) Family() uint16  { return Family }
func (c *NavInfo) Subtype() uint16 { return SubtypeNavInfo }

func (c *NavInfo) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain()
	if c.HasMaxRooms {
		m.Add(tlv.New(TlvMaxRooms, []byte{c.MaxRooms}))
	}
	for _, e := range c.Exchanges {
		b, err := e.bytes()
		if err != nil {
			return err
		}
		m.Add(tlv.New(TlvExchangeInfo, b))
	}
	if c.Room != nil {
		var buf bytes.Buffer
		if _, err := c.Room.WriteTo(&buf); err != nil {
			return err
		}
		m.Add(tlv.New(TlvRoomInfo, buf.Bytes()))
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}

