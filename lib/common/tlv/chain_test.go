package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Single(t *testing.T) {
	raw := []byte{0x00, 0x09, 0x00, 0x02, 0x00, 0x01, 0xff}
	tl, n, ok := Read(data.Wrap(raw))
	require.True(t, ok)
	assert.Equal(t, 6, n)
	assert.Equal(t, uint16(0x09), tl.Type)
	v, ok := tl.UShort()
	require.True(t, ok)
	assert.Equal(t, uint16(1), v)
}

func TestReadChain_Empty(t *testing.T) {
	c := ReadChain(data.Wrap(nil))
	assert.Equal(t, 0, c.Len())
}

func TestReadChain_TruncatedTrailingDropped(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want int
	}{
		{"short header", []byte{0x00, 0x01, 0x00, 0x01, 'a', 0x00, 0x02}, 1},
		{"short data", []byte{0x00, 0x01, 0x00, 0x01, 'a', 0x00, 0x02, 0x00, 0x05, 'b'}, 1},
		{"only partial", []byte{0x00, 0x01, 0x00, 0x04, 'a'}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ReadChain(data.Wrap(tt.raw))
			assert.Equal(t, tt.want, c.Len())
		})
	}
}

func TestChain_RoundTripPreservesOrderAndRepeats(t *testing.T) {
	orig := NewChain(
		NewString(0x01, "first"),
		NewUShort(0x02, 7),
		NewString(0x01, "second"),
		NewEmpty(0x03),
		NewString(0x01, "third"),
	)
	raw, err := orig.Bytes()
	require.NoError(t, err)
	assert.Len(t, raw, orig.Size())

	got := ReadChain(data.Wrap(raw))
	require.Equal(t, orig.Len(), got.Len())
	for i, tl := range orig.All() {
		assert.Equal(t, tl.Type, got.All()[i].Type)
		assert.True(t, tl.Data.Equal(got.All()[i].Data))
	}
}

func TestChain_FirstLastGet(t *testing.T) {
	c := NewChain(
		NewString(0x01, "a"),
		NewUShort(0x02, 1),
		NewString(0x01, "b"),
		NewUShort(0x02, 2),
	)
	first, ok := c.FirstString(0x01)
	require.True(t, ok)
	assert.Equal(t, "a", first)
	last, ok := c.LastString(0x01)
	require.True(t, ok)
	assert.Equal(t, "b", last)

	fv, _ := c.FirstUShort(0x02)
	lv, _ := c.LastUShort(0x02)
	assert.Equal(t, uint16(1), fv)
	assert.Equal(t, uint16(2), lv)

	assert.Len(t, c.Get(0x01), 2)
	assert.False(t, c.Has(0x05))
	_, ok = c.Last(0x05)
	assert.False(t, ok)
}

func TestChain_ReadChainCount(t *testing.T) {
	raw, err := NewChain(NewUShort(0x01, 1), NewUShort(0x02, 2), NewUShort(0x03, 3)).Bytes()
	require.NoError(t, err)
	c, n := ReadChainCount(data.Wrap(raw), 2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 12, n)
}

func TestTlv_TooLarge(t *testing.T) {
	tl := New(0x01, make([]byte, 0x10000))
	_, err := tl.WriteTo(&bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestMutableChain(t *testing.T) {
	m := NewMutableChain().
		Add(NewUShort(0x01, 1)).
		Add(NewUShort(0x02, 2)).
		Add(NewUShort(0x01, 3))
	m.Replace(NewUShort(0x01, 9))
	m.Replace(NewUShort(0x04, 4))
	c := m.Immutable()

	v, _ := c.FirstUShort(0x01)
	assert.Equal(t, uint16(9), v)
	v, _ = c.LastUShort(0x01)
	assert.Equal(t, uint16(3), v)
	assert.Equal(t, 4, c.Len())

	m.Remove(0x01)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 4, c.Len(), "snapshot must not see later edits")
}
