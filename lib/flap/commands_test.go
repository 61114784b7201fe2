package flap

import (
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseCmd_NoFieldsWritesNoTlvs(t *testing.T) {
	payload, err := Marshal(NewCloseCmd(NoCode, ""))
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Equal(t, 0, tlv.ReadChain(data.Wrap(payload)).Len())
}

func TestCloseCmd_CodeAndURLInOrder(t *testing.T) {
	payload, err := Marshal(NewCloseCmd(1, "http://x"))
	require.NoError(t, err)

	chain := tlv.ReadChain(data.Wrap(payload))
	require.Equal(t, 2, chain.Len())
	all := chain.All()
	assert.Equal(t, TlvCloseCode, all[0].Type)
	assert.Equal(t, TlvCloseURL, all[1].Type)
	code, _ := all[0].UShort()
	assert.Equal(t, uint16(1), code)
	assert.Equal(t, "http://x", all[1].String())
}

func TestCloseCmd_DecodeDistinguishesZeroFromMissing(t *testing.T) {
	zero, err := Marshal(NewCloseCmd(0, ""))
	require.NoError(t, err)
	cmd, err := DecodeCloseCmd(Packet{Channel: ChannelClose, Data: data.Wrap(zero)})
	require.NoError(t, err)
	assert.Equal(t, 0, cmd.(*CloseCmd).Code)

	cmd, err = DecodeCloseCmd(Packet{Channel: ChannelClose})
	require.NoError(t, err)
	assert.Equal(t, NoCode, cmd.(*CloseCmd).Code)
	assert.Nil(t, cmd.(*CloseCmd).URL)
}

func TestCloseCmd_EmptyURLKept(t *testing.T) {
	payload, err := tlv.NewChain(tlv.NewString(TlvCloseURL, "")).Bytes()
	require.NoError(t, err)
	cmd, err := DecodeCloseCmd(Packet{Channel: ChannelClose, Data: data.Wrap(payload)})
	require.NoError(t, err)
	cc := cmd.(*CloseCmd)
	require.NotNil(t, cc.URL)
	assert.Equal(t, "", *cc.URL)
	assert.Equal(t, "", cc.URLString())

	out, err := Marshal(cc)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestCloseCmd_ExtraTlvsPreserved(t *testing.T) {
	in := &CloseCmd{Code: NoCode, Extra: tlv.NewChain(tlv.NewString(0x05, "bos:5190"))}
	payload, err := Marshal(in)
	require.NoError(t, err)

	cmd, err := DecodeCloseCmd(Packet{Channel: ChannelClose, Data: data.Wrap(payload)})
	require.NoError(t, err)
	out := cmd.(*CloseCmd)
	addr, ok := out.Extra.FirstString(0x05)
	require.True(t, ok)
	assert.Equal(t, "bos:5190", addr)
}

func TestLoginCmd_RoundTrip(t *testing.T) {
	in := NewCookieLoginCmd([]byte{0xde, 0xad})
	payload, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x00, 0x06, 0x00, 0x02, 0xde, 0xad}, payload)

	cmd, err := DecodeLoginCmd(Packet{Channel: ChannelLogin, Data: data.Wrap(payload)})
	require.NoError(t, err)
	login := cmd.(*LoginCmd)
	assert.Equal(t, ProtocolVersion, login.Version)
	cookie, ok := login.Cookie()
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad}, cookie)
}

func TestLoginCmd_Short(t *testing.T) {
	_, err := DecodeLoginCmd(Packet{Channel: ChannelLogin, Data: data.Wrap([]byte{0, 0})})
	assert.ErrorIs(t, err, ErrShortData)
}

func TestFactory_UnknownChannelIsGeneric(t *testing.T) {
	pkt := Packet{Channel: 0x09, Data: data.Wrap([]byte{1, 2, 3})}
	cmd, err := DefaultFactory().Decode(pkt)
	require.NoError(t, err)
	generic, ok := cmd.(*GenericCmd)
	require.True(t, ok)
	assert.Equal(t, uint8(0x09), generic.Channel())

	payload, err := Marshal(generic)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "snac", ChannelName(ChannelSnac))
	assert.Equal(t, "channel-9", ChannelName(9))
}
