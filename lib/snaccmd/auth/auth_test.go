package auth

import (
	"crypto/md5"
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
	pkt, err := snac.ToPacket(cmd, 7)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestHashPassword(t *testing.T) {
	key := []byte("1234567890")
	inner := md5.Sum([]byte("secret"))
	want := md5.Sum(append(append(append([]byte{}, key...), inner[:]...), []byte("AOL Instant Messenger (SM)")...))
	assert.Equal(t, want[:], HashPassword(key, "secret"))

	legacy := md5.Sum([]byte("1234567890secretAOL Instant Messenger (SM)"))
	assert.Equal(t, legacy[:], HashPasswordLegacy(key, "secret"))
	assert.NotEqual(t, HashPassword(key, "secret"), HashPassword(key, "Secret"))
}

func TestKeyRequestResponse(t *testing.T) {
	req := roundTrip(t, NewKeyRequest("Joe User")).(*KeyRequest)
	assert.Equal(t, "Joe User", req.Screenname)

	body, err := snac.Marshal(&KeyResponse{Key: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 'a', 'b', 'c'}, body)

	resp := roundTrip(t, &KeyResponse{Key: []byte("0123456789")}).(*KeyResponse)
	assert.Equal(t, []byte("0123456789"), resp.Key)
}

func TestKeyResponseTruncated(t *testing.T) {
	pkt := snac.Packet{Family: Family, Subtype: SubtypeKeyResponse, Data: data.Wrap([]byte{0x00, 0x05, 'a'})}
	_, err := table.Decode(pkt)
	assert.ErrorIs(t, err, data.ErrShortRead)
}

func TestAuthRequest(t *testing.T) {
	key := []byte("key")
	cmd := NewAuthRequest("joe", "pw", key, DefaultClientInfo)
	out := roundTrip(t, cmd).(*AuthRequest)
	assert.Equal(t, "joe", out.Screenname)
	assert.Equal(t, HashPassword(key, "pw"), out.Hash)
	assert.True(t, out.NewHash)
	assert.Equal(t, DefaultClientInfo, out.Client)

	body, err := snac.Marshal(cmd)
	require.NoError(t, err)
	chain := tlv.ReadChain(data.Wrap(body))
	first, ok := chain.First(TlvScreenname)
	require.True(t, ok)
	assert.Equal(t, TlvScreenname, chain.All()[0].Type)
	assert.Equal(t, "joe", first.String())
	assert.True(t, chain.Has(TlvSsiFlag))
}

func TestAuthResponseSuccess(t *testing.T) {
	in := &AuthResponse{
		Screenname: "joe",
		BosServer:  "bos.example.com:5190",
		Cookie:     []byte{1, 2, 3, 4},
		Email:      "joe@example.com",
	}
	out := roundTrip(t, in).(*AuthResponse)
	assert.True(t, out.Succeeded())
	assert.Equal(t, "bos.example.com:5190", out.BosServer)
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Cookie)
	assert.Equal(t, "joe@example.com", out.Email)
	assert.Zero(t, out.ErrorCode)
}

func TestAuthResponseError(t *testing.T) {
	in := &AuthResponse{Screenname: "joe", ErrorCode: ErrorBadPassword, ErrorURL: "http://example.com/e"}
	out := roundTrip(t, in).(*AuthResponse)
	assert.False(t, out.Succeeded())
	assert.Equal(t, ErrorBadPassword, out.ErrorCode)
	assert.Equal(t, "http://example.com/e", out.ErrorURL)
	assert.Equal(t, "incorrect password", ErrorName(out.ErrorCode))
	assert.Equal(t, "login error 0x0077", ErrorName(0x77))
}

func TestAuthResponseFirstMatch(t *testing.T) {
	chain := tlv.NewChain(
		tlv.NewString(TlvBosServer, "first:5190"),
		tlv.NewString(TlvBosServer, "second:5190"),
		tlv.New(TlvCookie, []byte{9}),
	)
	out := AuthResponseFromTLVs(chain)
	assert.Equal(t, "first:5190", out.BosServer)
	assert.True(t, out.Succeeded())
}
