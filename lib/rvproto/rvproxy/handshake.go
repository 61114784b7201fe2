package rvproxy

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// State is the progress of a proxy handshake.
type State int

const (
	StateNew State = iota
	StateInitSent
	StateAckReceived
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateInitSent:
		return "INIT_SENT"
	case StateAckReceived:
		return "ACK_RECEIVED"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrProxyError       = errors.New("rvproxy: proxy reported an error")
	ErrUnexpectedPacket = errors.New("rvproxy: packet not valid in this state")
	ErrNotReady         = errors.New("rvproxy: handshake not complete")
)

// Handshake tracks one side of the proxy handshake. The proposing side
// sends InitSend, receives an Ack to forward to its peer, then Ready. The
// receiving side sends InitRecv and receives Ready directly.
type Handshake struct {
	init  Command
	state State
	ack   *Ack
	err   error
}

// NewSendHandshake starts the proposing side.
func NewSendHandshake(sn string, cookie [8]byte, capability uuid.UUID) *Handshake {
	return &Handshake{init: &InitSend{Screenname: sn, Cookie: cookie, Capability: capability}}
}

// NewRecvHandshake starts the receiving side with the port from the
// proposer's rendezvous.
func NewRecvHandshake(sn string, port uint16, cookie [8]byte, capability uuid.UUID) *Handshake {
	return &Handshake{init: &InitRecv{Screenname: sn, Port: port, Cookie: cookie, Capability: capability}}
}

// State returns the current state.
func (h *Handshake) State() State { return h.state }

// Ack returns the proxy's acknowledgement once received.
func (h *Handshake) Ack() (*Ack, bool) { return h.ack, h.ack != nil }

// Err returns the failure reason in StateFailed.
func (h *Handshake) Err() error { return h.err }

// Start returns the init command to send and moves to StateInitSent.
func (h *Handshake) Start() (Command, error) {
	if h.state != StateNew {
		return nil, oops.Wrapf(ErrUnexpectedPacket, "start in %s", h.state)
	}
	h.state = StateInitSent
	return h.init, nil
}

func (h *Handshake) fail(err error) error {
	h.state = StateFailed
	h.err = err
	return err
}

// Handle advances the handshake with a command received from the proxy.
func (h *Handshake) Handle(cmd Command) error {
	if h.state == StateFailed {
		return h.err
	}
	if e, ok := cmd.(*Error); ok {
		log.WithFields(logger.Fields{"at": "rvproxy.Handshake.Handle", "code": e.Code, "state": h.state.String()}).Warn("proxy_error")
		return h.fail(oops.Wrapf(ErrProxyError, "code 0x%04x", e.Code))
	}
	_, sending := h.init.(*InitSend)
	switch c := cmd.(type) {
	case *Ack:
		if h.state == StateInitSent && sending {
			h.ack = c
			h.state = StateAckReceived
			return nil
		}
	case *Ready:
		if h.state == StateAckReceived || (h.state == StateInitSent && !sending) {
			h.state = StateReady
			return nil
		}
	}
	return h.fail(oops.Wrapf(ErrUnexpectedPacket, "%s in %s", TypeName(cmd.Type()), h.state))
}
