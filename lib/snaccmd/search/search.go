// Package search implements SNAC family 0x000a, the find-by-email lookup.
package search

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilySearch

// Subtypes.
const (
	SubtypeByEmail uint16 = 0x0002
	SubtypeResults uint16 = 0x0003
)

// TlvScreenname holds one matching screen name in SearchResults.
const TlvScreenname uint16 = 0x0001

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeByEmail, DecodeByEmail)
	b.Register(Family, SubtypeResults, DecodeResults)
}

// ByEmail looks up screen names registered to an email address. The body
// is the bare address.
type ByEmail struct {
	Email string
}

// DecodeByEmail decodes a ByEmail.
func DecodeByEmail(p snac.Packet) (snac.Command, error) {
	return &ByEmail{Email: p.Payload().String()}, nil
}

func (c *ByEmail) Family() uint16  { return Family }
func (c *ByEmail) Subtype() uint16 { return SubtypeByEmail }

func (c *ByEmail) WriteData(w io.Writer) error {
	_, err := io.WriteString(w, c.Email)
	return err
}

// Results lists the matching screen names in server order.
type Results struct {
	Screennames []string
}

// DecodeResults decodes Results.
func DecodeResults(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	c := &Results{}
	for _, t := range chain.Get(TlvScreenname) {
		c.Screennames = append(c.Screennames, t.String())
	}
	return c, nil
}

func (c *Results) Family() uint16  { return Family }
func (c *Results) Subtype() uint16 { return SubtypeResults }

func (c *Results) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain()
	for _, sn := range c.Screennames {
		m.Add(tlv.NewString(TlvScreenname, sn))
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}
