package directim

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLayout(t *testing.T) {
	m, err := NewMessage([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, "alice", "hi")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, m))
	b := buf.Bytes()
	require.Len(t, b, HeaderSize+2)

	assert.Equal(t, []byte("ODC2"), b[0:4])
	assert.Equal(t, []byte{0x00, 0x4c}, b[4:6])
	assert.Equal(t, []byte{0x00, 0x01}, b[6:8])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b[12:20])
	assert.Equal(t, []byte{0, 0, 0, 2}, b[28:32])
	assert.Equal(t, []byte{0, 0}, b[32:34])
	assert.Equal(t, []byte("alice\x00"), b[44:50])
	assert.Equal(t, []byte("hi"), b[HeaderSize:])
}

func TestMessageRoundTrip(t *testing.T) {
	m, err := NewMessage([8]byte{7}, "bob", "grüße 🙂")
	require.NoError(t, err)
	assert.Equal(t, EncodingUCS2BE, m.Header.Encoding)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, m))
	out, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "bob", out.Header.Screenname)
	assert.Equal(t, [8]byte{7}, out.Header.Cookie)
	text, err := out.Text()
	require.NoError(t, err)
	assert.Equal(t, "grüße 🙂", text)
}

func TestTyping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewTyping([8]byte{}, "bob", false, true)))
	assert.Equal(t, HeaderSize, buf.Len())
	out, err := ReadMessage(&buf)
	require.NoError(t, err)
	typed, typing := out.Header.Typing()
	assert.False(t, typed)
	assert.True(t, typing)
	assert.Empty(t, out.Payload)

	plain := &Header{Flags: FlagTyping}
	typed, typing = plain.Typing()
	assert.False(t, typed || typing)
}

func TestReservedBytesPreserved(t *testing.T) {
	h := &Header{Type: TypeMessage, Screenname: "x"}
	h.Reserved2[3] = 0x5a
	h.Reserved4[0] = 0x11
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)
	raw := append([]byte(nil), buf.Bytes()...)

	out, err := ReadHeader(&buf)
	require.NoError(t, err)
	var again bytes.Buffer
	_, err = out.WriteTo(&again)
	require.NoError(t, err)
	assert.Equal(t, raw, again.Bytes())
}

func TestReadErrors(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadHeader(bytes.NewReader([]byte("ODC2")))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := make([]byte, HeaderSize)
	copy(bad, "OFT2")
	_, err = ReadHeader(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrBadMagic)

	wrongLen := make([]byte, HeaderSize)
	copy(wrongLen, "ODC2\x00\x50")
	_, err = ReadHeader(bytes.NewReader(wrongLen))
	assert.ErrorIs(t, err, ErrBadHeaderLength)

	huge := &Header{Type: TypeMessage, PayloadLen: MaxPayload + 1}
	var buf bytes.Buffer
	_, err = huge.WriteTo(&buf)
	require.NoError(t, err)
	_, err = ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = (&Header{Screenname: strings.Repeat("x", 33)}).WriteTo(io.Discard)
	assert.ErrorIs(t, err, data.ErrStringTooLong)
}
