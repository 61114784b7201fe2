package client

import (
	"errors"
	"fmt"
)

// State is a connection's lifecycle stage.
type State int

const (
	StateNotConnected State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "NOT_CONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	case StateDisconnected:
		return "DISCONNECTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateDisconnected
}

var transitions = map[State][]State{
	StateNotConnected: {StateConnecting, StateDisconnected},
	StateConnecting:   {StateConnected, StateFailed, StateDisconnected},
	StateConnected:    {StateFailed, StateDisconnected},
}

// CanTransition reports whether from → to is a valid transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrInvalidTransition = errors.New("client: invalid state transition")
	ErrNotConnected      = errors.New("client: not connected")
)

// StateEvent describes one transition.
type StateEvent struct {
	Conn *ClientConn
	Old  State
	New  State
	// Reason is set on transitions to StateFailed, and on StateDisconnected
	// when the server sent a close command.
	Reason error
}

// StateListener is called after each transition, in registration order.
type StateListener func(StateEvent)
