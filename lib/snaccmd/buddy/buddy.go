// Package buddy implements SNAC family 0x0003, the client-side buddy list:
// adding and removing watched screen names and receiving their presence.
package buddy

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyBuddy

// Subtypes.
const (
	SubtypeRightsRequest uint16 = 0x0002
	SubtypeRights        uint16 = 0x0003
	SubtypeAdd           uint16 = 0x0004
	SubtypeRemove        uint16 = 0x0005
	SubtypeStatus        uint16 = 0x000b
	SubtypeOffline       uint16 = 0x000c
)

// Rights TLV types.
const (
	TlvMaxBuddies  uint16 = 0x0001
	TlvMaxWatchers uint16 = 0x0002
)

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeRightsRequest, DecodeRightsRequest)
	b.Register(Family, SubtypeRights, DecodeRights)
	b.Register(Family, SubtypeAdd, decodeList(SubtypeAdd))
	b.Register(Family, SubtypeRemove, decodeList(SubtypeRemove))
	b.Register(Family, SubtypeStatus, DecodeStatus)
	b.Register(Family, SubtypeOffline, DecodeOffline)
}

// RightsRequest asks for the buddy list limits.
type RightsRequest struct{}

// DecodeRightsRequest decodes a RightsRequest.
func DecodeRightsRequest(snac.Packet) (snac.Command, error) { return &RightsRequest{}, nil }

func (c *RightsRequest) Family() uint16            { return Family }
func (c *RightsRequest) Subtype() uint16           { return SubtypeRightsRequest }
func (c *RightsRequest) WriteData(io.Writer) error { return nil }

// Rights holds the buddy list limits.
type Rights struct {
	MaxBuddies  uint16
	MaxWatchers uint16
	TLVs        tlv.Chain
}

// DecodeRights decodes Rights.
func DecodeRights(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	c := &Rights{TLVs: chain}
	c.MaxBuddies, _ = chain.FirstUShort(TlvMaxBuddies)
	c.MaxWatchers, _ = chain.FirstUShort(TlvMaxWatchers)
	return c, nil
}

func (c *Rights) Family() uint16  { return Family }
func (c *Rights) Subtype() uint16 { return SubtypeRights }

func (c *Rights) WriteData(w io.Writer) error {
	_, err := tlv.NewChain(
		tlv.NewUShort(TlvMaxBuddies, c.MaxBuddies),
		tlv.NewUShort(TlvMaxWatchers, c.MaxWatchers),
	).WriteTo(w)
	return err
}

// List adds screen names to, or removes them from, the watched set:
//
//	(sn_len:u8 | sn)*
type List struct {
	Sub         uint16
	Screennames []string
}

// NewAdd returns a command watching sns.
func NewAdd(sns ...string) *List { return &List{Sub: SubtypeAdd, Screennames: sns} }

// NewRemove returns a command that stops watching sns.
func NewRemove(sns ...string) *List { return &List{Sub: SubtypeRemove, Screennames: sns} }

func decodeList(subtype uint16) snac.DecodeFunc {
	return func(p snac.Packet) (snac.Command, error) {
		r := snaccmd.Body(p)
		c := &List{Sub: subtype}
		for r.Remaining() > 0 {
			sn := r.String8()
			if r.Err() != nil {
				break
			}
			c.Screennames = append(c.Screennames, sn)
		}
		return c, nil
	}
}

func (c *List) Family() uint16  { return Family }
func (c *List) Subtype() uint16 { return c.Sub }

func (c *List) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	for _, sn := range c.Screennames {
		dw.String8(sn)
	}
	return dw.Err()
}

// Status reports that a buddy signed on or changed state.
type Status struct {
	User snaccmd.FullUserInfo
}

// DecodeStatus decodes a Status.
func DecodeStatus(p snac.Packet) (snac.Command, error) {
	user, _, err := snaccmd.ReadFullUserInfo(p.Payload())
	if err != nil {
		return nil, oops.Wrapf(err, "buddy status")
	}
	return &Status{User: user}, nil
}

func (c *Status) Family() uint16  { return Family }
func (c *Status) Subtype() uint16 { return SubtypeStatus }

func (c *Status) WriteData(w io.Writer) error {
	_, err := c.User.WriteTo(w)
	return err
}

// Offline reports that a buddy signed off. Servers send a bare user block
// with no TLVs.
type Offline struct {
	User snaccmd.FullUserInfo
}

// DecodeOffline decodes an Offline.
func DecodeOffline(p snac.Packet) (snac.Command, error) {
	user, _, err := snaccmd.ReadFullUserInfo(p.Payload())
	if err != nil {
		return nil, oops.Wrapf(err, "buddy offline")
	}
	return &Offline{User: user}, nil
}

func (c *Offline) Family() uint16  { return Family }
func (c *Offline) Subtype() uint16 { return SubtypeOffline }

func (c *Offline) WriteData(w io.Writer) error {
	_, err := c.User.WriteTo(w)
	return err
}
