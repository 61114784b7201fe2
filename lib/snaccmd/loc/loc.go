// Package loc implements SNAC family 0x0002: setting and fetching profiles,
// away messages and advertised capabilities.
package loc

import (
	"io"

	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyLoc

// Subtypes.
const (
	SubtypeRightsRequest     uint16 = 0x0002
	SubtypeRights            uint16 = 0x0003
	SubtypeSetInfo           uint16 = 0x0004
	SubtypeUserInfoRequest   uint16 = 0x0005
	SubtypeUserInfo          uint16 = 0x0006
	SubtypeUserInfoRequestV2 uint16 = 0x0015
)

// Info TLV types shared by SetInfo and UserInfo.
const (
	TlvProfileType uint16 = 0x0001
	TlvProfile     uint16 = 0x0002
	TlvAwayType    uint16 = 0x0003
	TlvAway        uint16 = 0x0004
	TlvCaps        uint16 = 0x0005
)

// Rights TLV types.
const (
	TlvMaxProfileLen uint16 = 0x0001
	TlvMaxCaps       uint16 = 0x0002
)

// Info types for UserInfoRequest.
const (
	InfoGeneral uint16 = 0x0001
	InfoAway    uint16 = 0x0003
	InfoCaps    uint16 = 0x0005
)

// Flags for UserInfoRequestV2.
const (
	InfoFlagProfile uint32 = 0x00000001
	InfoFlagAway    uint32 = 0x00000002
	InfoFlagCaps    uint32 = 0x00000004
)

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeRightsRequest, DecodeRightsRequest)
	b.Register(Family, SubtypeRights, DecodeRights)
	b.Register(Family, SubtypeSetInfo, DecodeSetInfo)
	b.Register(Family, SubtypeUserInfoRequest, DecodeUserInfoRequest)
	b.Register(Family, SubtypeUserInfo, DecodeUserInfo)
	b.Register(Family, SubtypeUserInfoRequestV2, DecodeUserInfoRequestV2)
}

// RightsRequest asks for the location service limits.
type RightsRequest struct{}

// DecodeRightsRequest decodes a RightsRequest.
func DecodeRightsRequest(snac.Packet) (snac.Command, error) { return &RightsRequest{}, nil }

func (c *RightsRequest) Family() uint16            { return Family }
func (c *RightsRequest) Subtype() uint16           { return SubtypeRightsRequest }
func (c *RightsRequest) WriteData(io.Writer) error { return nil }

// Rights holds the location service limits.
type Rights struct {
	MaxProfileLen uint16
	MaxCaps       uint16
	TLVs          tlv.Chain
}

// DecodeRights decodes Rights.
func DecodeRights(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	c := &Rights{TLVs: chain}
	c.MaxProfileLen, _ = chain.FirstUShort(TlvMaxProfileLen)
	c.MaxCaps, _ = chain.FirstUShort(TlvMaxCaps)
	return c, nil
}

func (c *Rights) Family() uint16  { return Family }
func (c *Rights) Subtype() uint16 { return SubtypeRights }

func (c *Rights) WriteData(w io.Writer) error {
	_, err := tlv.NewChain(
		tlv.NewUShort(TlvMaxProfileLen, c.MaxProfileLen),
		tlv.NewUShort(TlvMaxCaps, c.MaxCaps),
	).WriteTo(w)
	return err
}

// Info is a profile, away message or capability set. A nil field is not
// sent; a non-nil empty Away clears the away message.
type Info struct {
	Profile *snaccmd.Text
	Away    *snaccmd.Text
	Caps    []uuid.UUID
	HasCaps bool
}

func readInfo(chain tlv.Chain) Info {
	var in Info
	if t, ok := chain.First(TlvProfile); ok {
		mime, _ := chain.FirstString(TlvProfileType)
		in.Profile = &snaccmd.Text{ContentType: mime, Data: t.Data.Bytes()}
	}
	if t, ok := chain.First(TlvAway); ok {
		mime, _ := chain.FirstString(TlvAwayType)
		in.Away = &snaccmd.Text{ContentType: mime, Data: t.Data.Bytes()}
	}
	if t, ok := chain.First(TlvCaps); ok {
		in.Caps = snaccmd.ReadCapabilities(t.Data)
		in.HasCaps = true
	}
	return in
}

func (in Info) chain() tlv.Chain {
	m := tlv.NewMutableChain()
	if in.Profile != nil {
		m.Add(tlv.NewString(TlvProfileType, in.Profile.ContentType))
		m.Add(tlv.New(TlvProfile, in.Profile.Data))
	}
	if in.Away != nil {
		m.Add(tlv.NewString(TlvAwayType, in.Away.ContentType))
		m.Add(tlv.New(TlvAway, in.Away.Data))
	}
	if in.HasCaps || len(in.Caps) > 0 {
		m.Add(snaccmd.CapabilityTlv(TlvCaps, in.Caps...))
	}
	return m.Immutable()
}

// SetInfo publishes the client's own info.
type SetInfo struct {
	Info
}

// NewSetProfile returns a SetInfo updating only the profile.
func NewSetProfile(profile string) (*SetInfo, error) {
	text, err := snaccmd.NewText(profile)
	if err != nil {
		return nil, err
	}
	return &SetInfo{Info{Profile: &text}}, nil
}

// NewSetAway returns a SetInfo updating the away message. An empty message
// marks the user as back.
func NewSetAway(away string) (*SetInfo, error) {
	text, err := snaccmd.NewText(away)
	if err != nil {
		return nil, err
	}
	return &SetInfo{Info{Away: &text}}, nil
}

// NewSetCaps returns a SetInfo updating the advertised capabilities.
func NewSetCaps(caps ...uuid.UUID) *SetInfo {
	return &SetInfo{Info{Caps: caps, HasCaps: true}}
}

// DecodeSetInfo decodes a SetInfo.
func DecodeSetInfo(p snac.Packet) (snac.Command, error) {
	return &SetInfo{readInfo(tlv.ReadChain(p.Payload()))}, nil
}

func (c *SetInfo) Family() uint16  { return Family }
func (c *SetInfo) Subtype() uint16 { return SubtypeSetInfo }

func (c *SetInfo) WriteData(w io.Writer) error {
	_, err := c.chain().WriteTo(w)
	return err
}

// UserInfoRequest fetches one kind of info for a screen name.
type UserInfoRequest struct {
	Type       uint16
	Screenname string
}

// DecodeUserInfoRequest decodes a UserInfoRequest.
func DecodeUserInfoRequest(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &UserInfoRequest{Type: r.UShort(), Screenname: r.String8()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "user info request")
	}
	return c, nil
}

func (c *UserInfoRequest) Family() uint16  { return Family }
func (c *UserInfoRequest) Subtype() uint16 { return SubtypeUserInfoRequest }

func (c *UserInfoRequest) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Type)
	dw.String8(c.Screenname)
	return dw.Err()
}

// UserInfoRequestV2 fetches several kinds of info at once.
type UserInfoRequestV2 struct {
	Flags      uint32
	Screenname string
}

// DecodeUserInfoRequestV2 decodes a UserInfoRequestV2.
func DecodeUserInfoRequestV2(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	c := &UserInfoRequestV2{Flags: r.UInt(), Screenname: r.String8()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "user info request")
	}
	return c, nil
}

func (c *UserInfoRequestV2) Family() uint16  { return Family }
func (c *UserInfoRequestV2) Subtype() uint16 { return SubtypeUserInfoRequestV2 }

func (c *UserInfoRequestV2) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UInt(c.Flags)
	dw.String8(c.Screenname)
	return dw.Err()
}

// UserInfo is the reply to either info request.
type UserInfo struct {
	User snaccmd.FullUserInfo
	Info
}

// DecodeUserInfo decodes a UserInfo.
func DecodeUserInfo(p snac.Packet) (snac.Command, error) {
	body := p.Payload()
	user, n, err := snaccmd.ReadFullUserInfo(body)
	if err != nil {
		return nil, oops.Wrapf(err, "user info")
	}
	return &UserInfo{User: user, Info: readInfo(tlv.ReadChain(body.Sub(n)))}, nil
}

func (c *UserInfo) Family() uint16  { return Family }
func (c *UserInfo) Subtype() uint16 { return SubtypeUserInfo }

func (c *UserInfo) WriteData(w io.Writer) error {
	if _, err := c.User.WriteTo(w); err != nil {
		return err
	}
	_, err := c.chain().WriteTo(w)
	return err
}
