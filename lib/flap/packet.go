package flap

import (
	"io"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/samber/oops"
)

// Packet is a received FLAP frame.
type Packet struct {
	Channel uint8
	Seq     uint16
	Data    data.ByteBlock
}

// Header returns the header that framed p.
func (p Packet) Header() Header {
	return Header{Channel: p.Channel, Seq: p.Seq, Length: uint16(p.Data.Len())}
}

// ReadPacket reads one complete frame from r. A stream that ends partway
// through the header or payload yields io.ErrUnexpectedEOF and no packet.
func ReadPacket(r io.Reader) (Packet, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}

	log.WithFields(logger.Fields{
		"at":      "flap.ReadPacket",
		"channel": hdr.Channel,
		"seq":     hdr.Seq,
		"length":  hdr.Length,
	}).Debug("flap_packet_read")

	return Packet{Channel: hdr.Channel, Seq: hdr.Seq, Data: data.Wrap(payload)}, nil
}

// EncodeFrame returns the wire encoding of a frame carrying payload.
func EncodeFrame(channel uint8, seq uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxDataLen {
		return nil, oops.Wrapf(ErrPayloadTooLarge, "channel %d payload is %d bytes", channel, len(payload))
	}
	hdr := Header{Channel: channel, Seq: seq, Length: uint16(len(payload))}
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, hdr.Bytes()...)
	return append(frame, payload...), nil
}

// WritePacket writes p as a frame to w.
func WritePacket(w io.Writer, p Packet) error {
	frame, err := EncodeFrame(p.Channel, p.Seq, p.Data.Bytes())
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
