package search

import (
	"testing"

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
	snaccmd.RegisterErrors(b)
	return b.Build()
}()

func TestByEmail(t *testing.T) {
	body, err := snac.Marshal(&ByEmail{Email: "joe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []byte("joe@example.com"), body)

	pkt, err := snac.ToPacket(&ByEmail{Email: "joe@example.com"}, 1)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	assert.Equal(t, "joe@example.com", out.(*ByEmail).Email)
}

func TestResultsKeepOrderAndSkipOthers(t *testing.T) {
	chain := tlv.NewChain(
		tlv.NewString(TlvScreenname, "zed"),
		tlv.NewString(0x0009, "ignored"),
		tlv.NewString(TlvScreenname, "amy"),
		tlv.NewString(TlvScreenname, "zed"),
	)
	body, err := chain.Bytes()
	require.NoError(t, err)
	out, err := table.Decode(snac.Packet{Family: Family, Subtype: SubtypeResults, Data: data.Wrap(body)})
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "amy", "zed"}, out.(*Results).Screennames)
}

func TestNoMatchIsSnacError(t *testing.T) {
	pkt, err := snac.ToPacket(snaccmd.NewSnacError(Family, snaccmd.ErrorNoMatch), 4)
	require.NoError(t, err)
	out, err := table.Decode(pkt)
	require.NoError(t, err)
	se, ok := out.(*snaccmd.SnacError)
	require.True(t, ok)
	assert.Equal(t, Family, se.Family())
}
