package buddy

import (
	"testing"
	"time"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
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
	pkt, err := snac.ToPacket(cmd, 9)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestAddRemove(t *testing.T) {
	body, err := snac.Marshal(NewAdd("ab", "c"))
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 'a', 'b', 1, 'c'}, body)

	add := roundTrip(t, NewAdd("alice", "bob")).(*List)
	assert.Equal(t, SubtypeAdd, add.Subtype())
	assert.Equal(t, []string{"alice", "bob"}, add.Screennames)

	rm := roundTrip(t, NewRemove("bob")).(*List)
	assert.Equal(t, SubtypeRemove, rm.Subtype())
	assert.Equal(t, []string{"bob"}, rm.Screennames)
}

func TestListDropsTruncatedName(t *testing.T) {
	pkt := snac.Packet{Family: Family, Subtype: SubtypeAdd, Data: data.Wrap([]byte{1, 'a', 5, 'b'})}
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.(*List).Screennames)
}

func TestStatus(t *testing.T) {
	in := &Status{User: snaccmd.FullUserInfo{
		Screenname: "alice",
		TLVs: tlv.NewChain(
			tlv.NewUShort(snaccmd.TlvIdleMinutes, 5),
			tlv.NewUShort(snaccmd.TlvIdleMinutes, 7),
		),
	}}
	out := roundTrip(t, in).(*Status)
	assert.Equal(t, "alice", out.User.Screenname)
	idle, ok := out.User.IdleTime()
	require.True(t, ok)
	assert.Equal(t, 7*time.Minute, idle)
}

func TestOffline(t *testing.T) {
	body := []byte{3, 'b', 'o', 'b', 0, 0, 0, 0}
	out, err := table.Decode(snac.Packet{Family: Family, Subtype: SubtypeOffline, Data: data.Wrap(body)})
	require.NoError(t, err)
	assert.Equal(t, "bob", out.(*Offline).User.Screenname)

	_, err = table.Decode(snac.Packet{Family: Family, Subtype: SubtypeOffline, Data: data.Wrap([]byte{3, 'b'})})
	assert.ErrorIs(t, err, data.ErrShortRead)
}

func TestRights(t *testing.T) {
	out := roundTrip(t, &Rights{MaxBuddies: 220, MaxWatchers: 3000}).(*Rights)
	assert.Equal(t, uint16(220), out.MaxBuddies)
	assert.Equal(t, uint16(3000), out.MaxWatchers)
}
