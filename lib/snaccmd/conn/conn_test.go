package conn

import (
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
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
	pkt, err := snac.ToPacket(cmd, 1)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestServerReady(t *testing.T) {
	out := roundTrip(t, NewServerReady(snaccmd.FamilyConn, snaccmd.FamilyChatNav)).(*FamilyList)
	assert.Equal(t, SubtypeServerReady, out.Subtype())
	assert.Equal(t, []uint16{0x0001, 0x000d}, out.Families)
	assert.True(t, out.Supports(snaccmd.FamilyChatNav))
	assert.False(t, out.Supports(snaccmd.FamilyIcbm))
}

func TestClientReady(t *testing.T) {
	body, err := snac.Marshal(NewClientReady(snaccmd.FamilyConn))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x03, 0x01, 0x10, 0x04, 0x7b}, body)

	out := roundTrip(t, NewClientReady(snaccmd.FamilyConn, snaccmd.FamilyIcbm)).(*ClientReady)
	require.Len(t, out.Infos, 2)
	assert.Equal(t, snaccmd.FamilyIcbm, out.Infos[1].Family)
}

func TestVersions(t *testing.T) {
	out := roundTrip(t, NewClientVersions(snaccmd.FamilyConn, snaccmd.FamilyBuddy)).(*Versions)
	assert.Equal(t, []FamilyVersion{{Family: 1, Version: 3}, {Family: 3, Version: 1}}, out.Versions)
}

func TestServiceRequestAndRedirect(t *testing.T) {
	req := roundTrip(t, NewServiceRequest(snaccmd.FamilyChatNav)).(*ServiceRequest)
	assert.Equal(t, snaccmd.FamilyChatNav, req.Service)
	assert.Equal(t, 0, req.TLVs.Len())

	chat := roundTrip(t, NewChatServiceRequest(4, "!aol://room", 0)).(*ServiceRequest)
	info, ok := chat.TLVs.First(TlvChatRoomInfo)
	require.True(t, ok)
	assert.Equal(t, 2+1+len("!aol://room")+2, info.Data.Len())

	redirect := roundTrip(t, &ServiceRedirect{
		Service: snaccmd.FamilyChatNav,
		Server:  "chatnav.example:5190",
		Cookie:  []byte{1, 2, 3, 4},
	}).(*ServiceRedirect)
	assert.Equal(t, snaccmd.FamilyChatNav, redirect.Service)
	assert.Equal(t, "chatnav.example:5190", redirect.Server)
	assert.Equal(t, []byte{1, 2, 3, 4}, redirect.Cookie)
}

func TestRateInfo(t *testing.T) {
	in := &RateInfo{Classes: []RateClass{
		{ID: 1, WindowSize: 80, ClearLevel: 2500, AlertLevel: 2000, LimitedLevel: 1500,
			DisconnectLevel: 800, CurrentLevel: 6000, MaxLevel: 6000,
			Members: []snac.Key{{Family: 1, Subtype: 6}, {Family: 4, Subtype: 6}}},
		{ID: 2, WindowSize: 20, ClearLevel: 5100, MaxLevel: 6000},
	}}
	body, err := snac.Marshal(in)
	require.NoError(t, err)
	assert.Len(t, body, 2+2*rateClassSize+(4+8)+(4+0))

	out := roundTrip(t, in).(*RateInfo)
	require.Len(t, out.Classes, 2)
	assert.Equal(t, in.Classes[0], out.Classes[0])
	assert.Equal(t, []uint16{1, 2}, out.ClassIDs())

	params, members := out.Limits()
	require.Len(t, params, 2)
	assert.Equal(t, uint32(2500), params[0].ClearLevel)
	assert.Equal(t, uint16(1), members[snac.Key{Family: 4, Subtype: 6}])
}

func TestRateInfo_TruncatedClasses(t *testing.T) {
	_, err := DecodeRateInfo(snac.Packet{Family: Family, Subtype: SubtypeRateInfo,
		Data: data.Wrap([]byte{0x00, 0x01, 0x00, 0x01})})
	assert.Error(t, err)
}

func TestRateAckAndChange(t *testing.T) {
	ack := roundTrip(t, &RateAck{ClassIDs: []uint16{1, 2, 3}}).(*RateAck)
	assert.Equal(t, []uint16{1, 2, 3}, ack.ClassIDs)

	change := roundTrip(t, &RateChange{Code: RateChangeWarning, Class: RateClass{ID: 3, CurrentLevel: 1900}}).(*RateChange)
	assert.Equal(t, RateChangeWarning, change.Code)
	assert.Equal(t, uint32(1900), change.Class.CurrentLevel)
}

func TestEmptyAndIdle(t *testing.T) {
	out := roundTrip(t, NewRateInfoRequest())
	assert.Equal(t, SubtypeRateInfoRequest, out.Subtype())

	idle := roundTrip(t, &SetIdle{Seconds: 600}).(*SetIdle)
	assert.Equal(t, uint32(600), idle.Seconds)
}

func TestYourInfoAndWarning(t *testing.T) {
	info := snaccmd.FullUserInfo{Screenname: "me", WarningLevel: 10}
	your := roundTrip(t, &YourInfo{Info: info}).(*YourInfo)
	assert.Equal(t, "me", your.Info.Screenname)

	anon := roundTrip(t, &Warning{NewLevel: 50}).(*Warning)
	assert.Equal(t, uint16(50), anon.NewLevel)
	assert.Nil(t, anon.Warner)

	named := roundTrip(t, &Warning{NewLevel: 60, Warner: &info}).(*Warning)
	require.NotNil(t, named.Warner)
	assert.Equal(t, "me", named.Warner.Screenname)
}
