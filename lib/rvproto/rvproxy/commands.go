package rvproxy

import (
	"bytes"
	"net/netip"

	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/samber/oops"
)

// TlvCapability carries the rendezvous capability in init packets.
const TlvCapability uint16 = 0x0001

// Error codes.
const (
	ErrorUnknown       uint16 = 0x0000
	ErrorBadRequest    uint16 = 0x000d
	ErrorInitTimeout   uint16 = 0x001a
	ErrorAcceptTimeout uint16 = 0x0044
)

// Command is a typed proxy packet payload.
type Command interface {
	Type() uint16
	Payload() ([]byte, error)
}

// Encode wraps cmd in a packet with the default header fields.
func Encode(cmd Command) (*Packet, error) {
	payload, err := cmd.Payload()
	if err != nil {
		return nil, err
	}
	return &Packet{Version: Version, Type: cmd.Type(), Flags: FlagsDefault, Payload: payload}, nil
}

// Decode interprets a packet's payload by its type. Unknown types return a
// Generic command.
func Decode(p *Packet) (Command, error) {
	r := data.NewReader(data.Wrap(p.Payload))
	var cmd Command
	switch p.Type {
	case TypeError:
		cmd = &Error{Code: r.UShort()}
	case TypeAck:
		c := &Ack{Port: r.UShort()}
		var ip [4]byte
		r.Fixed(ip[:])
		c.IP = netip.AddrFrom4(ip)
		cmd = c
	case TypeReady:
		cmd = &Ready{}
	case TypeInitSend:
		c := &InitSend{Screenname: r.String8()}
		r.Fixed(c.Cookie[:])
		c.Capability = readCapability(r)
		cmd = c
	case TypeInitRecv:
		c := &InitRecv{Screenname: r.String8(), Port: r.UShort()}
		r.Fixed(c.Cookie[:])
		c.Capability = readCapability(r)
		cmd = c
	default:
		return &Generic{T: p.Type, Data: p.Payload}, nil
	}
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "decode rvproxy %s", TypeName(p.Type))
	}
	return cmd, nil
}

func readCapability(r *data.Reader) uuid.UUID {
	chain := tlv.ReadChain(r.Rest())
	t, ok := chain.First(TlvCapability)
	if !ok || t.Data.Len() != 16 {
		return uuid.Nil
	}
	return uuid.UUID(t.Data.Bytes())
}

func writeInit(sn string, port *uint16, cookie [8]byte, capability uuid.UUID) ([]byte, error) {
	var buf bytes.Buffer
	w := data.NewWriter(&buf)
	w.String8(sn)
	if port != nil {
		w.UShort(*port)
	}
	w.Write(cookie[:])
	if err := w.Err(); err != nil {
		return nil, err
	}
	if _, err := tlv.New(TlvCapability, capability[:]).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Error reports a proxy failure.
type Error struct {
	Code uint16
}

func (c *Error) Type() uint16             { return TypeError }
func (c *Error) Payload() ([]byte, error) { return data.UShortBytes(c.Code), nil }

// InitSend registers the proposing peer with the proxy.
type InitSend struct {
	Screenname string
	Cookie     [8]byte
	Capability uuid.UUID
}

func (c *InitSend) Type() uint16 { return TypeInitSend }

func (c *InitSend) Payload() ([]byte, error) {
	return writeInit(c.Screenname, nil, c.Cookie, c.Capability)
}

// Ack gives the proposing peer the proxy address to forward to the other
// peer. Port is opaque: it names the proxy session rather than a TCP port.
type Ack struct {
	Port uint16
	IP   netip.Addr
}

func (c *Ack) Type() uint16 { return TypeAck }

func (c *Ack) Payload() ([]byte, error) {
	ip := c.IP.As4()
	return append(data.UShortBytes(c.Port), ip[:]...), nil
}

// InitRecv joins the receiving peer to a proxy session. Port is the value
// from the proposer's Ack, passed through unchanged.
type InitRecv struct {
	Screenname string
	Port       uint16
	Cookie     [8]byte
	Capability uuid.UUID
}

func (c *InitRecv) Type() uint16 { return TypeInitRecv }

func (c *InitRecv) Payload() ([]byte, error) {
	return writeInit(c.Screenname, &c.Port, c.Cookie, c.Capability)
}

// Ready tells both peers the relay is established.
type Ready struct{}

func (c *Ready) Type() uint16             { return TypeReady }
func (c *Ready) Payload() ([]byte, error) { return nil, nil }

// Generic is a packet of unknown type.
type Generic struct {
	T    uint16
	Data []byte
}

func (c *Generic) Type() uint16             { return c.T }
func (c *Generic) Payload() ([]byte, error) { return c.Data, nil }
