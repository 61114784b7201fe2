package snac

import (
	"fmt"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/flap"
)

// HeaderSize is the size of a SNAC header.
const HeaderSize = 10

// Flag bits.
const (
	// Flag1Extra marks data that begins with a length-prefixed block of
	// extra information before the command body.
	Flag1Extra uint8 = 0x80
	// Flag2MoreReplies marks a response with further responses to follow for
	// the same request ID.
	Flag2MoreReplies uint8 = 0x01
)

// Key identifies a command by family and subtype.
type Key struct {
	Family  uint16
	Subtype uint16
}

func (k Key) String() string {
	return fmt.Sprintf("0x%04x/0x%04x", k.Family, k.Subtype)
}

// Packet is a decoded SNAC header and its data.
type Packet struct {
	Family  uint16
	Subtype uint16
	Flag1   uint8
	Flag2   uint8
	ReqID   uint32
	Data    data.ByteBlock
}

// Key returns the packet's (family, subtype).
func (p Packet) Key() Key {
	return Key{Family: p.Family, Subtype: p.Subtype}
}

// Flags returns flag1 and flag2 as one 16-bit value.
func (p Packet) Flags() uint16 {
	return uint16(p.Flag1)<<8 | uint16(p.Flag2)
}

// Payload returns the command body, skipping the extra-information block
// when Flag1Extra is set. A malformed extra block yields the raw data.
func (p Packet) Payload() data.ByteBlock {
	if p.Flag1&Flag1Extra == 0 {
		return p.Data
	}
	n, err := data.GetUShort(p.Data, 0)
	if err != nil || 2+int(n) > p.Data.Len() {
		return p.Data
	}
	return p.Data.Sub(2 + int(n))
}

// Parse decodes a SNAC from b. It reports false when b is shorter than a
// SNAC header.
func Parse(b data.ByteBlock) (Packet, bool) {
	if b.Len() < HeaderSize {
		return Packet{}, false
	}
	r := data.NewReader(b)
	p := Packet{
		Family:  r.UShort(),
		Subtype: r.UShort(),
		Flag1:   r.UByte(),
		Flag2:   r.UByte(),
		ReqID:   r.UInt(),
	}
	p.Data = r.Rest()
	return p, true
}

// FromFlap decodes the SNAC carried by a FLAP packet. It reports false for
// packets on other channels and for channel 2 payloads shorter than 10 bytes.
func FromFlap(fp flap.Packet) (Packet, bool) {
	if fp.Channel != flap.ChannelSnac {
		return Packet{}, false
	}
	return Parse(fp.Data)
}

// WriteTo writes the SNAC header and data to w.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	dw := data.NewWriter(w)
	dw.UShort(p.Family)
	dw.UShort(p.Subtype)
	dw.UByte(p.Flag1)
	dw.UByte(p.Flag2)
	dw.UInt(p.ReqID)
	dw.Block(p.Data)
	return dw.Count(), dw.Err()
}

// Channel implements flap.Command so raw packets can be resent.
func (p Packet) Channel() uint8 { return flap.ChannelSnac }

// WriteData implements flap.Command.
func (p Packet) WriteData(w io.Writer) error {
	_, err := p.WriteTo(w)
	return err
}
