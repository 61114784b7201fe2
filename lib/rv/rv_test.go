package rv

import (
	"net/netip"
	"testing"

	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cookie = icbm.Cookie{1, 2, 3, 4, 5, 6, 7, 8}

// viaIcbm sends cmd through a full SNAC round trip and decodes the result.
func viaIcbm(t *testing.T, cmd Command) Command {
	t.Helper()
	send, err := NewSendRv("bob", cookie, cmd)
	require.NoError(t, err)
	b := snac.NewTableBuilder()
	icbm.Register(b)
	pkt, err := snac.ToPacket(send, 1)
	require.NoError(t, err)
	decoded, err := b.Build().Decode(pkt)
	require.NoError(t, err)
	rvIcbm := decoded.(*icbm.SendRv)
	assert.Equal(t, cookie, rvIcbm.Rv.Cookie)
	out, err := Decode(rvIcbm.Rv)
	require.NoError(t, err)
	return out
}

func TestFileSendReq(t *testing.T) {
	msg, err := NewInviteMessage("take this", "en")
	require.NoError(t, err)
	in := &FileSendReq{
		RequestInfo: RequestInfo{
			Index: IndexInitial,
			Conn: ConnectionInfo{
				InternalIP: netip.MustParseAddr("192.168.1.10"),
				ExternalIP: netip.MustParseAddr("203.0.113.7"),
				Port:       5190,
				HasPort:    true,
			},
			Message: msg,
		},
		File: &FileInfo{Count: 1, TotalSize: 4096, Filename: "notes.txt"},
	}
	out := viaIcbm(t, in).(*FileSendReq)
	assert.Equal(t, IndexInitial, out.Index)
	assert.Equal(t, in.Conn.InternalIP, out.Conn.InternalIP)
	assert.Equal(t, in.Conn.ExternalIP, out.Conn.ExternalIP)
	assert.Equal(t, uint16(5190), out.Conn.Port)
	require.NotNil(t, out.File)
	assert.Equal(t, *in.File, *out.File)
	require.NotNil(t, out.Message)
	text, err := out.Message.Decode()
	require.NoError(t, err)
	assert.Equal(t, "take this", text)
	assert.Equal(t, 0, out.Extra.Len())

	addr, ok := out.Conn.AddrPort()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.10:5190", addr.String())
}

func TestFileSendChecks(t *testing.T) {
	in := &FileSendReq{RequestInfo: RequestInfo{Conn: ConnectionInfo{
		ProxyIP: netip.MustParseAddr("64.12.1.1"),
		Port:    0x1234,
		HasPort: true,
		Proxied: true,
	}}}
	chain, err := in.Chain()
	require.NoError(t, err)
	chk, ok := chain.FirstUShort(TlvPortCheck)
	require.True(t, ok)
	assert.Equal(t, uint16(0xedcb), chk)
	ipChk, ok := chain.First(TlvProxyIPCheck)
	require.True(t, ok)
	assert.Equal(t, []byte{^byte(64), ^byte(12), ^byte(1), ^byte(1)}, ipChk.Data.Bytes())

	ci := ReadConnectionInfo(chain)
	assert.True(t, ci.Verified(chain))
	addr, ok := ci.AddrPort()
	require.True(t, ok)
	assert.Equal(t, "64.12.1.1:4660", addr.String())

	bad := chain.Mutable().Replace(tlv.NewUShort(TlvPortCheck, 1)).Immutable()
	assert.False(t, ReadConnectionInfo(bad).Verified(bad))
}

func TestDirectImReqKeepsUnknownTlvs(t *testing.T) {
	in := &DirectImReq{RequestInfo: RequestInfo{
		Index:       IndexRedirect,
		RequestHost: true,
		Extra:       tlv.NewChain(tlv.New(0x2712, []byte("x"))),
	}}
	out := viaIcbm(t, in).(*DirectImReq)
	assert.Equal(t, IndexRedirect, out.Index)
	assert.True(t, out.RequestHost)
	require.Equal(t, 1, out.Extra.Len())
	assert.Equal(t, uint16(0x2712), out.Extra.All()[0].Type)
}

func TestGetFileServiceDataRoundTrip(t *testing.T) {
	in := &GetFileReq{
		RequestInfo: RequestInfo{Index: IndexInitial},
		Service:     &GetFileService{Code: 0x0012, Version: 0xdeadbeef, Trailer: []byte{0, 1, 2, 0xff}},
	}
	want, err := in.Chain()
	require.NoError(t, err)
	out := viaIcbm(t, in).(*GetFileReq)
	require.NotNil(t, out.Service)
	assert.Equal(t, *in.Service, *out.Service)

	got, err := out.Chain()
	require.NoError(t, err)
	wb, err := want.Bytes()
	require.NoError(t, err)
	gb, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, wb, gb)
}

func TestAcceptReject(t *testing.T) {
	acc := viaIcbm(t, &Accept{Cap: snaccmd.CapDirectIM}).(*Accept)
	assert.Equal(t, snaccmd.CapDirectIM, acc.Cap)

	rej := viaIcbm(t, NewReject(snaccmd.CapSendFile, RejectDeclined)).(*Reject)
	assert.True(t, rej.HasCode)
	assert.Equal(t, RejectDeclined, rej.Code)

	bare := viaIcbm(t, &Reject{Cap: snaccmd.CapSendFile}).(*Reject)
	assert.False(t, bare.HasCode)
}

func TestUnknownCapabilityIsGeneric(t *testing.T) {
	voice := uuid.MustParse("09461341-4C7F-11D1-8222-444553540000")
	in := &Generic{Cap: voice, Stat: StatusRequest, TLVs: tlv.NewChain(tlv.NewUShort(TlvRequestIndex, 1))}
	out := viaIcbm(t, in).(*Generic)
	assert.Equal(t, voice, out.Cap)
	assert.Equal(t, 1, out.TLVs.Len())
}

func TestTruncatedFileInfo(t *testing.T) {
	block := icbm.RvBlock{
		Capability: snaccmd.CapSendFile,
		TLVs:       tlv.NewChain(tlv.New(TlvServiceData, []byte{0, 1, 0})),
	}
	_, err := Decode(block)
	assert.Error(t, err)
}
