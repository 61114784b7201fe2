package flap

import (
	"encoding/binary"
	"io"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

const (
	// Parity is the first byte of every FLAP frame.
	Parity = 0x2A
	// HeaderSize is the fixed size of a FLAP header.
	HeaderSize = 6
	// MaxDataLen is the largest payload a FLAP frame can carry.
	MaxDataLen = 0xFFFF
)

// Header is a FLAP frame header. The parity byte is implied.
type Header struct {
	Channel uint8
	Seq     uint16
	Length  uint16
}

// Bytes returns the 6-byte wire encoding of h.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	b[0] = Parity
	b[1] = h.Channel
	binary.BigEndian.PutUint16(b[2:4], h.Seq)
	binary.BigEndian.PutUint16(b[4:6], h.Length)
	return b
}

// ReadHeader reads one header from r.
//
// It returns io.EOF when the stream ends cleanly before the first byte,
// io.ErrUnexpectedEOF when it ends partway through the header, and an error
// wrapping ErrBadParity when the first byte is not 0x2A. In the parity case
// only the first byte has been consumed.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return Header{}, err
	}
	if b[0] != Parity {
		log.WithFields(logger.Fields{
			"at":       "flap.ReadHeader",
			"got_byte": b[0],
			"expected": Parity,
		}).Error("invalid_flap_parity")
		return Header{}, oops.Wrapf(ErrBadParity, "got 0x%02x", b[0])
	}
	if _, err := io.ReadFull(r, b[1:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, err
	}
	return Header{
		Channel: b[1],
		Seq:     binary.BigEndian.Uint16(b[2:4]),
		Length:  binary.BigEndian.Uint16(b[4:6]),
	}, nil
}
