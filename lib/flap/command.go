package flap

import (
	"bytes"
	"fmt"
	"io"
)

// FLAP channels.
const (
	ChannelLogin     uint8 = 0x01
	ChannelSnac      uint8 = 0x02
	ChannelError     uint8 = 0x03
	ChannelClose     uint8 = 0x04
	ChannelKeepalive uint8 = 0x05
)

// ChannelName returns a readable name for a FLAP channel.
func ChannelName(ch uint8) string {
	switch ch {
	case ChannelLogin:
		return "login"
	case ChannelSnac:
		return "snac"
	case ChannelError:
		return "error"
	case ChannelClose:
		return "close"
	case ChannelKeepalive:
		return "keepalive"
	}
	return fmt.Sprintf("channel-%d", ch)
}

// Command is a typed FLAP channel payload.
type Command interface {
	Channel() uint8
	// WriteData writes the payload, without the FLAP header.
	WriteData(w io.Writer) error
}

// Marshal returns the payload of cmd.
func Marshal(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := cmd.WriteData(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFunc turns a received packet into a command.
type DecodeFunc func(Packet) (Command, error)

// Factory maps channels to decoders. It is immutable once built.
type Factory struct {
	decoders map[uint8]DecodeFunc
}

// NewFactory returns a factory over a copy of decoders.
func NewFactory(decoders map[uint8]DecodeFunc) *Factory {
	m := make(map[uint8]DecodeFunc, len(decoders))
	for ch, fn := range decoders {
		m[ch] = fn
	}
	return &Factory{decoders: m}
}

// DefaultFactory decodes the login, error, close and keepalive channels.
// SNAC data stays a GenericCmd here; package snac reads it from the packet.
func DefaultFactory() *Factory {
	return NewFactory(map[uint8]DecodeFunc{
		ChannelLogin:     DecodeLoginCmd,
		ChannelError:     DecodeErrorCmd,
		ChannelClose:     DecodeCloseCmd,
		ChannelKeepalive: DecodeKeepaliveCmd,
	})
}

// Decode returns the typed command for p, or a GenericCmd for channels with
// no registered decoder.
func (f *Factory) Decode(p Packet) (Command, error) {
	if fn, ok := f.decoders[p.Channel]; ok {
		return fn(p)
	}
	return &GenericCmd{Chan: p.Channel, Data: p.Data}, nil
}
