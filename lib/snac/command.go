package snac

import (
	"bytes"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/flap"
)

// Command is a typed SNAC command.
type Command interface {
	Family() uint16
	Subtype() uint16
	// WriteData writes the command body, without the SNAC header.
	WriteData(w io.Writer) error
}

// Flagged is implemented by commands that send non-zero SNAC flags.
type Flagged interface {
	Flags() (flag1, flag2 uint8)
}

// KeyOf returns the (family, subtype) of cmd.
func KeyOf(cmd Command) Key {
	return Key{Family: cmd.Family(), Subtype: cmd.Subtype()}
}

// Marshal returns the body of cmd.
func Marshal(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := cmd.WriteData(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToPacket serializes cmd into a packet with request ID reqID.
func ToPacket(cmd Command, reqID uint32) (Packet, error) {
	body, err := Marshal(cmd)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{Family: cmd.Family(), Subtype: cmd.Subtype(), ReqID: reqID, Data: data.Wrap(body)}
	if f, ok := cmd.(Flagged); ok {
		p.Flag1, p.Flag2 = f.Flags()
	}
	return p, nil
}

// flapCommand frames a SNAC command for FLAP channel 2.
type flapCommand struct {
	cmd   Command
	reqID uint32
}

// FlapCommand returns the FLAP channel 2 command carrying cmd.
func FlapCommand(cmd Command, reqID uint32) flap.Command {
	return &flapCommand{cmd: cmd, reqID: reqID}
}

func (c *flapCommand) Channel() uint8 { return flap.ChannelSnac }

func (c *flapCommand) WriteData(w io.Writer) error {
	var f1, f2 uint8
	if f, ok := c.cmd.(Flagged); ok {
		f1, f2 = f.Flags()
	}
	dw := data.NewWriter(w)
	dw.UShort(c.cmd.Family())
	dw.UShort(c.cmd.Subtype())
	dw.UByte(f1)
	dw.UByte(f2)
	dw.UInt(c.reqID)
	if err := dw.Err(); err != nil {
		return err
	}
	return c.cmd.WriteData(w)
}

// RawCommand carries an undecoded body for a known key.
type RawCommand struct {
	Key  Key
	Body data.ByteBlock
}

func (c *RawCommand) Family() uint16  { return c.Key.Family }
func (c *RawCommand) Subtype() uint16 { return c.Key.Subtype }

func (c *RawCommand) WriteData(w io.Writer) error {
	_, err := c.Body.WriteTo(w)
	return err
}
