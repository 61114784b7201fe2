// Package conn implements SNAC family 0x0001, the generic service controls
// every OSCAR connection uses: service readiness and versions, service
// redirects, rate classes, idle time and the client's own user info.
package conn

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyConn

// Subtypes.
const (
	SubtypeClientReady     uint16 = 0x0002
	SubtypeServerReady     uint16 = 0x0003
	SubtypeServiceRequest  uint16 = 0x0004
	SubtypeServiceRedirect uint16 = 0x0005
	SubtypeRateInfoRequest uint16 = 0x0006
	SubtypeRateInfo        uint16 = 0x0007
	SubtypeRateAck         uint16 = 0x0008
	SubtypeRateChange      uint16 = 0x000a
	SubtypePause           uint16 = 0x000b
	SubtypePauseAck        uint16 = 0x000c
	SubtypeResume          uint16 = 0x000d
	SubtypeMyInfoRequest   uint16 = 0x000e
	SubtypeYourInfo        uint16 = 0x000f
	SubtypeWarning         uint16 = 0x0010
	SubtypeSetIdle         uint16 = 0x0011
	SubtypeMotd            uint16 = 0x0013
	SubtypeClientVersions  uint16 = 0x0017
	SubtypeServerVersions  uint16 = 0x0018
)

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeClientReady, DecodeClientReady)
	b.Register(Family, SubtypeServerReady, DecodeServerReady)
	b.Register(Family, SubtypeServiceRequest, DecodeServiceRequest)
	b.Register(Family, SubtypeServiceRedirect, DecodeServiceRedirect)
	b.Register(Family, SubtypeRateInfoRequest, decodeEmpty(SubtypeRateInfoRequest))
	b.Register(Family, SubtypeRateInfo, DecodeRateInfo)
	b.Register(Family, SubtypeRateAck, DecodeRateAck)
	b.Register(Family, SubtypeRateChange, DecodeRateChange)
	b.Register(Family, SubtypePause, DecodePause)
	b.Register(Family, SubtypePauseAck, DecodePauseAck)
	b.Register(Family, SubtypeResume, decodeEmpty(SubtypeResume))
	b.Register(Family, SubtypeMyInfoRequest, decodeEmpty(SubtypeMyInfoRequest))
	b.Register(Family, SubtypeYourInfo, DecodeYourInfo)
	b.Register(Family, SubtypeWarning, DecodeWarning)
	b.Register(Family, SubtypeSetIdle, DecodeSetIdle)
	b.Register(Family, SubtypeMotd, DecodeMotd)
	b.Register(Family, SubtypeClientVersions, DecodeClientVersions)
	b.Register(Family, SubtypeServerVersions, DecodeServerVersions)
}

// Empty is a command with no body: rate info requests, resume and my info
// requests.
type Empty struct {
	Sub uint16
}

func decodeEmpty(subtype uint16) snac.DecodeFunc {
	return func(snac.Packet) (snac.Command, error) {
		return &Empty{Sub: subtype}, nil
	}
}

// NewRateInfoRequest returns the request for the server's rate classes.
func NewRateInfoRequest() *Empty { return &Empty{Sub: SubtypeRateInfoRequest} }

// NewMyInfoRequest returns the request for the client's own user info.
func NewMyInfoRequest() *Empty { return &Empty{Sub: SubtypeMyInfoRequest} }

func (c *Empty) Family() uint16            { return Family }
func (c *Empty) Subtype() uint16           { return c.Sub }
func (c *Empty) WriteData(io.Writer) error { return nil }

// FamilyList is a body made of 16-bit family codes: server ready, pause and
// pause acknowledgement.
type FamilyList struct {
	Sub      uint16
	Families []uint16
}

func readFamilies(p snac.Packet) []uint16 {
	r := snaccmd.Body(p)
	var fams []uint16
	for r.Remaining() >= 2 {
		fams = append(fams, r.UShort())
	}
	return fams
}

// NewServerReady returns the server's list of supported families.
func NewServerReady(families ...uint16) *FamilyList {
	return &FamilyList{Sub: SubtypeServerReady, Families: families}
}

// DecodeServerReady decodes the families a server supports.
func DecodeServerReady(p snac.Packet) (snac.Command, error) {
	return &FamilyList{Sub: SubtypeServerReady, Families: readFamilies(p)}, nil
}

// DecodePause decodes a pause notice.
func DecodePause(p snac.Packet) (snac.Command, error) {
	return &FamilyList{Sub: SubtypePause, Families: readFamilies(p)}, nil
}

// DecodePauseAck decodes a pause acknowledgement.
func DecodePauseAck(p snac.Packet) (snac.Command, error) {
	return &FamilyList{Sub: SubtypePauseAck, Families: readFamilies(p)}, nil
}

func (c *FamilyList) Family() uint16  { return Family }
func (c *FamilyList) Subtype() uint16 { return c.Sub }

func (c *FamilyList) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	for _, f := range c.Families {
		dw.UShort(f)
	}
	return dw.Err()
}

// Supports reports whether family appears in the list.
func (c *FamilyList) Supports(family uint16) bool {
	for _, f := range c.Families {
		if f == family {
			return true
		}
	}
	return false
}

// FamilyInfo describes the client's implementation of one family.
type FamilyInfo struct {
	Family      uint16
	Version     uint16
	ToolID      uint16
	ToolVersion uint16
}

// Tool identifiers of the AIM 4.x client family implementations.
const (
	DefaultToolID      uint16 = 0x0110
	DefaultToolVersion uint16 = 0x047b
)

var defaultVersions = map[uint16]uint16{
	snaccmd.FamilyConn:    0x0003,
	snaccmd.FamilyLoc:     0x0001,
	snaccmd.FamilyBuddy:   0x0001,
	snaccmd.FamilyIcbm:    0x0001,
	snaccmd.FamilyInvite:  0x0001,
	snaccmd.FamilyPopup:   0x0001,
	snaccmd.FamilyBos:     0x0001,
	snaccmd.FamilySearch:  0x0001,
	snaccmd.FamilyStats:   0x0001,
	snaccmd.FamilyChatNav: 0x0001,
	snaccmd.FamilyChat:    0x0001,
	snaccmd.FamilySsi:     0x0001,
}

// DefaultFamilyInfo returns the client's info for family.
func DefaultFamilyInfo(family uint16) FamilyInfo {
	v, ok := defaultVersions[family]
	if !ok {
		v = 0x0001
	}
	return FamilyInfo{Family: family, Version: v, ToolID: DefaultToolID, ToolVersion: DefaultToolVersion}
}

// ClientReady tells the server which families the client will use on this
// connection. No commands for those families are processed before it.
type ClientReady struct {
	Infos []FamilyInfo
}

// NewClientReady returns a ClientReady with default info for each family.
func NewClientReady(families ...uint16) *ClientReady {
	infos := make([]FamilyInfo, len(families))
	for i, f := range families {
		infos[i] = DefaultFamilyInfo(f)
	}
	return &ClientReady{Infos: infos}
}

// DecodeClientReady decodes a ClientReady.
func DecodeClientReady(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &ClientReady{}
	for r.Remaining() >= 8 {
		cmd.Infos = append(cmd.Infos, FamilyInfo{
			Family: r.UShort(), Version: r.UShort(), ToolID: r.UShort(), ToolVersion: r.UShort(),
		})
	}
	return cmd, nil
}

func (c *ClientReady) Family() uint16  { return Family }
func (c *ClientReady) Subtype() uint16 { return SubtypeClientReady }

func (c *ClientReady) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	for _, info := range c.Infos {
		dw.UShort(info.Family)
		dw.UShort(info.Version)
		dw.UShort(info.ToolID)
		dw.UShort(info.ToolVersion)
	}
	return dw.Err()
}

// FamilyVersion is one (family, version) pair.
type FamilyVersion struct {
	Family  uint16
	Version uint16
}

// Versions is the client or server list of family versions.
type Versions struct {
	Sub      uint16
	Versions []FamilyVersion
}

// NewClientVersions returns the client's versions for families.
func NewClientVersions(families ...uint16) *Versions {
	vs := make([]FamilyVersion, len(families))
	for i, f := range families {
		vs[i] = FamilyVersion{Family: f, Version: DefaultFamilyInfo(f).Version}
	}
	return &Versions{Sub: SubtypeClientVersions, Versions: vs}
}

func decodeVersions(sub uint16, p snac.Packet) *Versions {
	r := snaccmd.Body(p)
	cmd := &Versions{Sub: sub}
	for r.Remaining() >= 4 {
		cmd.Versions = append(cmd.Versions, FamilyVersion{Family: r.UShort(), Version: r.UShort()})
	}
	return cmd
}

// DecodeClientVersions decodes the client's family versions.
func DecodeClientVersions(p snac.Packet) (snac.Command, error) {
	return decodeVersions(SubtypeClientVersions, p), nil
}

// DecodeServerVersions decodes the server's family versions.
func DecodeServerVersions(p snac.Packet) (snac.Command, error) {
	return decodeVersions(SubtypeServerVersions, p), nil
}

func (c *Versions) Family() uint16  { return Family }
func (c *Versions) Subtype() uint16 { return c.Sub }

func (c *Versions) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	for _, v := range c.Versions {
		dw.UShort(v.Family)
		dw.UShort(v.Version)
	}
	return dw.Err()
}

// Service request and redirect TLV types.
const (
	TlvChatRoomInfo   uint16 = 0x0001
	TlvRedirectServer uint16 = 0x0005
	TlvRedirectCookie uint16 = 0x0006
	TlvRedirectFamily uint16 = 0x000d
)

// ServiceRequest asks the server where to connect for a family.
type ServiceRequest struct {
	Service uint16
	TLVs    tlv.Chain
}

// NewServiceRequest returns a request for family.
func NewServiceRequest(family uint16) *ServiceRequest {
	return &ServiceRequest{Service: family}
}

// NewChatServiceRequest returns a request for a chat room's service
// connection.
func NewChatServiceRequest(exchange uint16, cookie string, instance uint16) *ServiceRequest {
	var buf []byte
	buf = append(buf, data.UShortBytes(exchange)...)
	buf = append(buf, byte(len(cookie)))
	buf = append(buf, cookie...)
	buf = append(buf, data.UShortBytes(instance)...)
	return &ServiceRequest{
		Service: snaccmd.FamilyChat,
		TLVs:    tlv.NewChain(tlv.New(TlvChatRoomInfo, buf)),
	}
}

// DecodeServiceRequest decodes a ServiceRequest.
func DecodeServiceRequest(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &ServiceRequest{Service: r.UShort()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "service request family")
	}
	cmd.TLVs = tlv.ReadChain(r.Rest())
	return cmd, nil
}

func (c *ServiceRequest) Family() uint16  { return Family }
func (c *ServiceRequest) Subtype() uint16 { return SubtypeServiceRequest }

func (c *ServiceRequest) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Service)
	if err := dw.Err(); err != nil {
		return err
	}
	_, err := c.TLVs.WriteTo(w)
	return err
}

// ServiceRedirect tells the client where to connect for a family and which
// cookie to present there.
type ServiceRedirect struct {
	Service uint16
	Server  string
	Cookie  []byte
	TLVs    tlv.Chain
}

// DecodeServiceRedirect decodes a redirect. Each field takes the first TLV
// of its type.
func DecodeServiceRedirect(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	cmd := &ServiceRedirect{TLVs: chain}
	if f, ok := chain.FirstUShort(TlvRedirectFamily); ok {
		cmd.Service = f
	}
	cmd.Server, _ = chain.FirstString(TlvRedirectServer)
	if c, ok := chain.First(TlvRedirectCookie); ok {
		cmd.Cookie = c.Data.Bytes()
	}
	return cmd, nil
}

func (c *ServiceRedirect) Family() uint16  { return Family }
func (c *ServiceRedirect) Subtype() uint16 { return SubtypeServiceRedirect }

func (c *ServiceRedirect) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain().
		Add(tlv.NewUShort(TlvRedirectFamily, c.Service)).
		Add(tlv.NewString(TlvRedirectServer, c.Server)).
		Add(tlv.New(TlvRedirectCookie, c.Cookie))
	for _, t := range c.TLVs.All() {
		switch t.Type {
		case TlvRedirectFamily, TlvRedirectServer, TlvRedirectCookie:
		default:
			m.Add(t)
		}
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}

// SetIdle reports how long the client has been idle. Zero clears idle.
type SetIdle struct {
	Seconds uint32
}

// DecodeSetIdle decodes a SetIdle.
func DecodeSetIdle(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &SetIdle{Seconds: r.UInt()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "set idle")
	}
	return cmd, nil
}

func (c *SetIdle) Family() uint16  { return Family }
func (c *SetIdle) Subtype() uint16 { return SubtypeSetIdle }

func (c *SetIdle) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UInt(c.Seconds)
	return dw.Err()
}

// YourInfo carries the client's own user info.
type YourInfo struct {
	Info snaccmd.FullUserInfo
}

// DecodeYourInfo decodes a YourInfo.
func DecodeYourInfo(p snac.Packet) (snac.Command, error) {
	info, _, err := snaccmd.ReadFullUserInfo(p.Payload())
	if err != nil {
		return nil, err
	}
	return &YourInfo{Info: info}, nil
}

func (c *YourInfo) Family() uint16  { return Family }
func (c *YourInfo) Subtype() uint16 { return SubtypeYourInfo }

func (c *YourInfo) WriteData(w io.Writer) error {
	_, err := c.Info.WriteTo(w)
	return err
}

// Warning notifies the client that its warning level changed. Warner is nil
// for anonymous warnings.
type Warning struct {
	NewLevel uint16
	Warner   *snaccmd.FullUserInfo
}

// DecodeWarning decodes a Warning.
func DecodeWarning(p snac.Packet) (snac.Command, error) {
	body := p.Payload()
	level, err := data.GetUShort(body, 0)
	if err != nil {
		return nil, oops.Wrapf(err, "warning level")
	}
	cmd := &Warning{NewLevel: level}
	if body.Len() > 2 {
		info, _, err := snaccmd.ReadFullUserInfo(body.Sub(2))
		if err == nil {
			cmd.Warner = &info
		}
	}
	return cmd, nil
}

func (c *Warning) Family() uint16  { return Family }
func (c *Warning) Subtype() uint16 { return SubtypeWarning }

func (c *Warning) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.NewLevel)
	if err := dw.Err(); err != nil || c.Warner == nil {
		return err
	}
	_, err := c.Warner.WriteTo(w)
	return err
}

// TlvMotdMessage holds the message of the day text.
const TlvMotdMessage uint16 = 0x000b

// Motd is the server's message of the day.
type Motd struct {
	Type uint16
	TLVs tlv.Chain
}

// DecodeMotd decodes a Motd.
func DecodeMotd(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &Motd{Type: r.UShort()}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "motd type")
	}
	cmd.TLVs = tlv.ReadChain(r.Rest())
	return cmd, nil
}

// Message returns the message text, if present.
func (c *Motd) Message() (string, bool) {
	return c.TLVs.FirstString(TlvMotdMessage)
}

func (c *Motd) Family() uint16  { return Family }
func (c *Motd) Subtype() uint16 { return SubtypeMotd }

func (c *Motd) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Type)
	if err := dw.Err(); err != nil {
		return err
	}
	_, err := c.TLVs.WriteTo(w)
	return err
}
