package snaccmd

import (
	"fmt"
	"mime"
	"strings"

	"github.com/minecraftim/go-oscar/lib/common/data"
)

// AolRtf is the content type of profile and away text.
const AolRtf = "text/aolrtf"

// Text is a block of encoded text with a MIME-style content type naming its
// charset, as used by profiles, away messages and chat messages.
type Text struct {
	ContentType string
	Data        []byte
}

// NewText encodes s in the narrowest charset that holds it.
func NewText(s string) (Text, error) {
	charset := data.MinimalCharset(s)
	b, err := data.EncodeString(s, charset)
	if err != nil {
		return Text{}, err
	}
	return Text{ContentType: ContentType(AolRtf, charset), Data: b}, nil
}

// ContentType formats a content type with a charset parameter.
func ContentType(mediaType, charset string) string {
	return fmt.Sprintf("%s; charset=%q", mediaType, charset)
}

// Charset returns the charset parameter of the content type, or US-ASCII.
func (t Text) Charset() string {
	return MimeCharset(t.ContentType)
}

// Decode decodes the text using its charset.
func (t Text) Decode() (string, error) {
	return data.DecodeString(t.Data, t.Charset())
}

// MimeCharset extracts the charset parameter from a content type. Servers
// send loosely formed values so a failed parse falls back to a substring
// search.
func MimeCharset(contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs, ok := params["charset"]; ok && cs != "" {
			return cs
		}
		return data.CharsetASCII
	}
	lower := strings.ToLower(contentType)
	i := strings.Index(lower, "charset=")
	if i < 0 {
		return data.CharsetASCII
	}
	cs := strings.Trim(contentType[i+len("charset="):], "\"' ;")
	if j := strings.IndexAny(cs, "\"; "); j >= 0 {
		cs = cs[:j]
	}
	if cs == "" {
		return data.CharsetASCII
	}
	return cs
}
