package chat

import (
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/chatnav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = func() *snac.Table {
	b := snac.NewTableBuilder()
	Register(b)
	return b.Build()
}()

func roundTrip(t *testing.T, cmd snac.Command) snac.Command {
	t.Helper()
	pkt, err := snac.ToPacket(cmd, 2)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestRoomInfoUpdate(t *testing.T) {
	in := &RoomInfoUpdate{Room: chatnav.RoomInfo{
		RoomID: chatnav.RoomID{Exchange: 4, Cookie: "!aol://room", Instance: 1},
		Detail: chatnav.DetailFull,
		TLVs:   tlv.NewChain(tlv.NewString(chatnav.TlvRoomName, "gophers")),
	}}
	out := roundTrip(t, in).(*RoomInfoUpdate)
	assert.Equal(t, in.Room.RoomID, out.Room.RoomID)
	assert.Equal(t, "gophers", out.Room.Name())
}

func TestUsersJoinedLeft(t *testing.T) {
	joined := roundTrip(t, &Users{Sub: SubtypeUsersJoined, Users: []snaccmd.FullUserInfo{
		{Screenname: "alice"},
		{Screenname: "bob", TLVs: tlv.NewChain(tlv.NewUShort(snaccmd.TlvUserFlags, snaccmd.UserFlagFree))},
	}}).(*Users)
	assert.Equal(t, SubtypeUsersJoined, joined.Subtype())
	require.Len(t, joined.Users, 2)
	assert.Equal(t, "bob", joined.Users[1].Screenname)

	left := roundTrip(t, &Users{Sub: SubtypeUsersLeft, Users: []snaccmd.FullUserInfo{{Screenname: "alice"}}}).(*Users)
	assert.Equal(t, SubtypeUsersLeft, left.Subtype())
	assert.Len(t, left.Users, 1)
}

func TestSendMsg(t *testing.T) {
	msg, err := NewMessage("hello room", "en")
	require.NoError(t, err)
	in := NewSendMsg(msg)
	body, err := snac.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03}, body[8:10])

	out := roundTrip(t, in).(*SendMsg)
	assert.Equal(t, in.Cookie, out.Cookie)
	assert.True(t, out.Reflect)
	assert.Equal(t, data.CharsetASCII, out.Message.Charset)
	assert.Equal(t, "en", out.Message.Language)
	text, err := out.Message.Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello room", text)
}

func TestRecvMsg(t *testing.T) {
	msg, err := NewMessage("ünicode ☃", "de")
	require.NoError(t, err)
	assert.Equal(t, data.CharsetUCS2BE, msg.Charset)

	in := &RecvMsg{Sender: &snaccmd.FullUserInfo{Screenname: "carol"}, Message: msg}
	out := roundTrip(t, in).(*RecvMsg)
	require.NotNil(t, out.Sender)
	assert.Equal(t, "carol", out.Sender.Screenname)
	text, err := out.Message.Decode()
	require.NoError(t, err)
	assert.Equal(t, "ünicode ☃", text)
}

func TestRecvMsgWithoutSender(t *testing.T) {
	msg, err := NewMessage("system notice", "")
	require.NoError(t, err)
	out := roundTrip(t, &RecvMsg{Message: msg}).(*RecvMsg)
	assert.Nil(t, out.Sender)
	assert.Empty(t, out.Message.Language)
}
