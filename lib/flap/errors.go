package flap

import (
	"errors"
	"fmt"
)

var (
	// ErrBadParity is returned when a frame does not start with 0x2A. The
	// stream position is unknown afterwards, so the connection is unusable.
	ErrBadParity = errors.New("flap: bad parity byte")
	// ErrPayloadTooLarge is returned when a command serializes to more than
	// 0xFFFF bytes. Only that packet is dropped.
	ErrPayloadTooLarge = errors.New("flap: payload exceeds 0xFFFF bytes")
	// ErrShortData is returned when a channel command has too little data.
	ErrShortData = errors.New("flap: command data too short")
)

// ErrorType classifies errors routed to an ErrorHandler.
type ErrorType int

const (
	// ErrorTypeRead is a failure reading from the stream.
	ErrorTypeRead ErrorType = iota
	// ErrorTypeDecode is a failure turning a packet into a command.
	ErrorTypeDecode
	// ErrorTypeEncode is a failure serializing an outgoing command.
	ErrorTypeEncode
	// ErrorTypeWrite is a failure writing an encoded frame.
	ErrorTypeWrite
	// ErrorTypeListener is an error or panic raised by a listener.
	ErrorTypeListener
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeRead:
		return "read"
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeEncode:
		return "encode"
	case ErrorTypeWrite:
		return "write"
	case ErrorTypeListener:
		return "listener"
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// ErrorEvent is delivered to the processor's error handler.
type ErrorEvent struct {
	Type ErrorType
	Err  error
	// Packet is set for decode and listener errors.
	Packet *Packet
	// Command is set for encode and write errors.
	Command Command
}

// ErrorHandler receives errors the processor recovers from.
type ErrorHandler func(ErrorEvent)
