package rvproxy

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// Conn is a proxy connection. Until the handshake reaches StateReady, Read
// and Write fail with ErrNotReady; afterwards they pass straight through to
// the underlying connection.
type Conn struct {
	net.Conn
	hs    *Handshake
	ready atomic.Bool
}

// NewConn wraps an established connection to the proxy.
func NewConn(c net.Conn, hs *Handshake) *Conn {
	return &Conn{Conn: c, hs: hs}
}

// Dial connects to the proxy at addr and runs the handshake. onAck, which
// may be nil, is called on the proposing side with the address to forward
// to the peer.
func Dial(ctx context.Context, addr string, hs *Handshake, onAck func(*Ack)) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, oops.Wrapf(err, "dial rendezvous proxy %s", addr)
	}
	c := NewConn(nc, hs)
	if err := c.Handshake(ctx, onAck); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// Handshake sends the init packet and reads proxy packets until the relay
// is ready. Cancelling ctx aborts the pending read.
func (c *Conn) Handshake(ctx context.Context, onAck func(*Ack)) error {
	stop := context.AfterFunc(ctx, func() {
		c.Conn.SetDeadline(time.Now())
	})
	defer func() {
		if stop() {
			return
		}
		c.Conn.SetDeadline(time.Time{})
	}()

	init, err := c.hs.Start()
	if err != nil {
		return err
	}
	pkt, err := Encode(init)
	if err != nil {
		return err
	}
	if _, err := pkt.WriteTo(c.Conn); err != nil {
		return oops.Wrapf(err, "send %s", TypeName(init.Type()))
	}
	for c.hs.State() != StateReady {
		in, err := ReadPacket(c.Conn)
		if err != nil {
			if ctx.Err() != nil {
				return oops.Wrapf(ctx.Err(), "rvproxy handshake in %s", c.hs.State())
			}
			return oops.Wrapf(err, "rvproxy handshake in %s", c.hs.State())
		}
		cmd, err := Decode(in)
		if err != nil {
			return err
		}
		log.WithFields(logger.Fields{"at": "rvproxy.Conn.Handshake", "type": TypeName(in.Type), "state": c.hs.State().String()}).Debug("proxy_packet")
		if err := c.hs.Handle(cmd); err != nil {
			return err
		}
		if ack, ok := cmd.(*Ack); ok && onAck != nil {
			onAck(ack)
		}
	}
	c.ready.Store(true)
	return nil
}

// HandshakeState returns the handshake's state.
func (c *Conn) HandshakeState() State { return c.hs.State() }

func (c *Conn) Read(p []byte) (int, error) {
	if !c.ready.Load() {
		return 0, ErrNotReady
	}
	return c.Conn.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	if !c.ready.Load() {
		return 0, ErrNotReady
	}
	return c.Conn.Write(p)
}
