package snaccmd

import (
	"testing"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeCharset(t *testing.T) {
	assert.Equal(t, "us-ascii", MimeCharset(`text/aolrtf; charset="us-ascii"`))
	assert.Equal(t, "unicode-2-0", MimeCharset(`text/x-aolrtf; charset="unicode-2-0"`))
	assert.Equal(t, "iso-8859-1", MimeCharset(`text/aolrtf; charset=iso-8859-1`))
	assert.Equal(t, "us-ascii", MimeCharset("text/plain"))
	assert.Equal(t, "us-ascii", MimeCharset(""))
	assert.Equal(t, "utf-8", MimeCharset(`garbage;; charset="utf-8`))
}

func TestNewText(t *testing.T) {
	ascii, err := NewText("hello")
	require.NoError(t, err)
	assert.Equal(t, data.CharsetASCII, ascii.Charset())
	assert.Equal(t, []byte("hello"), ascii.Data)

	wide, err := NewText("héllo 世")
	require.NoError(t, err)
	assert.Equal(t, data.CharsetUCS2BE, wide.Charset())
	assert.Len(t, wide.Data, 14)
	s, err := wide.Decode()
	require.NoError(t, err)
	assert.Equal(t, "héllo 世", s)
}
