package chatnav

import (
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
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
	pkt, err := snac.ToPacket(cmd, 5)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestCreateRoom(t *testing.T) {
	cmd := NewCreateRoom(4, "gophers", "us-ascii", "en")
	body, err := snac.Marshal(cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x04, 0x06, 'c', 'r', 'e', 'a', 't', 'e', 0xff, 0xff, 0x01, 0x00, 0x03}, body[:14])

	out := roundTrip(t, cmd).(*CreateRoom)
	assert.Equal(t, CreateCookie, out.Cookie)
	assert.Equal(t, uint16(0xffff), out.Instance)
	assert.Equal(t, "gophers", out.Name())
	lang, _ := out.TLVs.FirstString(TlvRoomLanguage)
	assert.Equal(t, "en", lang)
}

func TestRoomInfoRequest(t *testing.T) {
	in := &RoomInfoRequest{RoomID: RoomID{Exchange: 4, Cookie: "!aol://2719:10-4-gophers", Instance: 0}, Detail: DetailFull}
	out := roundTrip(t, in).(*RoomInfoRequest)
	assert.Equal(t, in.RoomID, out.RoomID)
	assert.Equal(t, DetailFull, out.Detail)
}

func TestNavInfoLookups(t *testing.T) {
	in := &NavInfo{
		MaxRooms:    10,
		HasMaxRooms: true,
		Exchanges: []ExchangeInfo{
			{Number: 4, TLVs: tlv.NewChain(tlv.NewString(TlvRoomName, "public"))},
			{Number: 5, TLVs: tlv.NewChain(tlv.NewString(TlvRoomName, "private"))},
		},
		Room: &RoomInfo{
			RoomID: RoomID{Exchange: 4, Cookie: "!aol://room", Instance: 2},
			Detail: DetailFull,
			TLVs:   tlv.NewChain(tlv.NewString(TlvRoomName, "gophers")),
		},
	}
	out := roundTrip(t, in).(*NavInfo)
	assert.True(t, out.HasMaxRooms)
	assert.Equal(t, uint8(10), out.MaxRooms)
	require.Len(t, out.Exchanges, 2)
	assert.Equal(t, "public", out.Exchanges[0].Name())
	assert.Equal(t, uint16(5), out.Exchanges[1].Number)
	require.NotNil(t, out.Room)
	assert.Equal(t, "!aol://room", out.Room.Cookie)
	assert.Equal(t, "gophers", out.Room.Name())
}

func TestNavInfoFirstMatch(t *testing.T) {
	chain := tlv.NewChain(
		tlv.New(TlvMaxRooms, []byte{3}),
		tlv.New(TlvMaxRooms, []byte{9}),
	)
	body, err := chain.Bytes()
	require.NoError(t, err)
	out, err := table.Decode(snac.Packet{Family: Family, Subtype: SubtypeNavInfo, Data: data.Wrap(body)})
	require.NoError(t, err)
	nav := out.(*NavInfo)
	assert.Equal(t, uint8(3), nav.MaxRooms)
	assert.Empty(t, nav.Exchanges)
	assert.Nil(t, nav.Room)
}

func TestRoomInfoTruncated(t *testing.T) {
	_, _, err := ReadRoomInfo(data.Wrap([]byte{0x00, 0x04, 0x05, 'a'}))
	assert.ErrorIs(t, err, data.ErrShortRead)
}
