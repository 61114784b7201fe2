// Package rvproxy implements the AOL rendezvous proxy protocol, which relays
// a file transfer or direct IM connection when neither peer can accept an
// inbound connection. After the handshake completes the proxy connection
// carries the peers' bytes unchanged.
package rvproxy

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Version is the proxy protocol version in every packet header.
const Version uint16 = 0x044a

// DefaultPort is the port of the AOL rendezvous proxy.
const DefaultPort = 5190

// headerSize counts the bytes after the length field: version, type,
// unknown and flags.
const headerSize = 10

// Packet types.
const (
	TypeError    uint16 = 0x0001
	TypeInitSend uint16 = 0x0002
	TypeAck      uint16 = 0x0003
	TypeInitRecv uint16 = 0x0004
	TypeReady    uint16 = 0x0005
)

// Packet flags.
const (
	FlagsDefault uint16 = 0x0000
	FlagsReply   uint16 = 0x0220
)

var (
	ErrBadVersion  = errors.New("rvproxy: unsupported protocol version")
	ErrShortPacket = errors.New("rvproxy: packet shorter than header")
)

// TypeName returns a readable name for a packet type.
func TypeName(t uint16) string {
	switch t {
	case TypeError:
		return "error"
	case TypeInitSend:
		return "init-send"
	case TypeAck:
		return "ack"
	case TypeInitRecv:
		return "init-recv"
	case TypeReady:
		return "ready"
	}
	return "unknown"
}

// Packet is one proxy protocol frame:
//
//	length:u16 | version:u16 | type:u16 | unknown:u32 | flags:u16 | payload
//
// length counts every byte after itself.
type Packet struct {
	Version uint16
	Type    uint16
	Unknown uint32
	Flags   uint16
	Payload []byte
}

// WriteTo encodes the packet.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n := headerSize + len(p.Payload)
	if n > data.MaxUShort {
		return 0, oops.Wrapf(data.ErrValueRange, "rvproxy packet of %d bytes", n)
	}
	var buf bytes.Buffer
	dw := data.NewWriter(&buf)
	dw.UShort(uint16(n))
	dw.UShort(p.Version)
	dw.UShort(p.Type)
	dw.UInt(p.Unknown)
	dw.UShort(p.Flags)
	dw.Write(p.Payload)
	if err := dw.Err(); err != nil {
		return 0, err
	}
	written, err := w.Write(buf.Bytes())
	return int64(written), err
}

// ReadPacket reads exactly one frame from r, consuming no bytes past it.
func ReadPacket(r io.Reader) (*Packet, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, oops.Wrapf(err, "read rvproxy length")
	}
	n := int(lenBuf[0])<<8 | int(lenBuf[1])
	if n < headerSize {
		return nil, oops.Wrapf(ErrShortPacket, "length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, oops.Wrapf(io.ErrUnexpectedEOF, "read rvproxy body: %v", err)
	}
	rd := data.NewReader(data.Wrap(body))
	p := &Packet{Version: rd.UShort(), Type: rd.UShort(), Unknown: rd.UInt(), Flags: rd.UShort()}
	p.Payload = rd.Rest().Bytes()
	if p.Version != Version {
		log.WithFields(logger.Fields{"at": "rvproxy.ReadPacket", "version": p.Version}).Warn("unexpected_proxy_version")
		return nil, oops.Wrapf(ErrBadVersion, "0x%04x", p.Version)
	}
	return p, nil
}
