package flap

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_Bytes(t *testing.T) {
	h := Header{Channel: ChannelSnac, Seq: 0x1234, Length: 0x0010}
	assert.Equal(t, []byte{0x2a, 0x02, 0x12, 0x34, 0x00, 0x10}, h.Bytes())
}

func TestPacket_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		channel uint8
		seq     uint16
		payload []byte
	}{
		{"empty keepalive", ChannelKeepalive, 0, nil},
		{"snac", ChannelSnac, 0xffff, []byte{0x00, 0x01, 0x00, 0x03, 0, 0, 0, 0, 0, 1}},
		{"unknown channel", 0x7f, 42, []byte("payload")},
		{"max length", ChannelSnac, 7, make([]byte, MaxDataLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeFrame(tt.channel, tt.seq, tt.payload)
			require.NoError(t, err)
			assert.Len(t, frame, HeaderSize+len(tt.payload))

			pkt, err := ReadPacket(bytes.NewReader(frame))
			require.NoError(t, err)
			assert.Equal(t, tt.channel, pkt.Channel)
			assert.Equal(t, tt.seq, pkt.Seq)
			assert.Equal(t, len(tt.payload), pkt.Data.Len())
			assert.True(t, pkt.Data.Equal(data.Wrap(tt.payload)))

			var out bytes.Buffer
			require.NoError(t, WritePacket(&out, pkt))
			assert.Equal(t, frame, out.Bytes())
		})
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	_, err := EncodeFrame(ChannelSnac, 0, make([]byte, MaxDataLen+1))
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestReadHeader_BadParity(t *testing.T) {
	r := bytes.NewReader([]byte{0x2b, 0x02, 0x00, 0x00, 0x00, 0x00})
	_, err := ReadHeader(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadParity))
	// Nothing past the offending byte was consumed as header.
	assert.Equal(t, 5, r.Len())
}

func TestReadPacket_EndOfStream(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"clean boundary", nil, io.EOF},
		{"mid header", []byte{0x2a, 0x02, 0x00}, io.ErrUnexpectedEOF},
		{"mid body", []byte{0x2a, 0x02, 0x00, 0x01, 0x00, 0x04, 0xaa}, io.ErrUnexpectedEOF},
		{"after parity", []byte{0x2a}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPacket(bytes.NewReader(tt.raw))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsDisconnect(err))
		})
	}
}

func TestSeqGen_WrapsWithoutSkipping(t *testing.T) {
	g := NewSeqGen(0)
	for i := 0; i < 0x10000; i++ {
		require.Equal(t, uint16(i), g.Next())
	}
	assert.Equal(t, uint16(0), g.Next())
	assert.Equal(t, uint16(1), g.Next())
}

func TestSeqGen_StartValue(t *testing.T) {
	g := NewSeqGen(0xfffe)
	assert.Equal(t, uint16(0xfffe), g.Peek())
	assert.Equal(t, uint16(0xfffe), g.Next())
	assert.Equal(t, uint16(0xffff), g.Next())
	assert.Equal(t, uint16(0), g.Next())
}
