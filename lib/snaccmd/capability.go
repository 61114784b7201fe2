package snaccmd

import (
	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
)

// CapabilitySize is the size of one capability block.
const CapabilitySize = 16

// Well-known capability blocks.
var (
	CapChat        = uuid.MustParse("748F2420-6287-11D1-8222-444553540000")
	CapVoice       = uuid.MustParse("09461341-4C7F-11D1-8222-444553540000")
	CapSendFile    = uuid.MustParse("09461343-4C7F-11D1-8222-444553540000")
	CapDirectIM    = uuid.MustParse("09461345-4C7F-11D1-8222-444553540000")
	CapBuddyIcon   = uuid.MustParse("09461346-4C7F-11D1-8222-444553540000")
	CapAddins      = uuid.MustParse("09461347-4C7F-11D1-8222-444553540000")
	CapGetFile     = uuid.MustParse("09461348-4C7F-11D1-8222-444553540000")
	CapIcqRelay    = uuid.MustParse("09461349-4C7F-11D1-8222-444553540000")
	CapSendBuddies = uuid.MustParse("0946134B-4C7F-11D1-8222-444553540000")
	CapUtf8        = uuid.MustParse("0946134E-4C7F-11D1-8222-444553540000")
	CapShortCaps   = uuid.MustParse("09460000-4C7F-11D1-8222-444553540000")
)

var capabilityNames = map[uuid.UUID]string{
	CapChat:        "chat",
	CapVoice:       "voice",
	CapSendFile:    "send-file",
	CapDirectIM:    "direct-im",
	CapBuddyIcon:   "buddy-icon",
	CapAddins:      "addins",
	CapGetFile:     "get-file",
	CapIcqRelay:    "icq-relay",
	CapSendBuddies: "send-buddy-list",
	CapUtf8:        "utf8",
	CapShortCaps:   "short-caps",
}

// CapabilityName returns a readable name for a capability, or its UUID
// string when unknown.
func CapabilityName(c uuid.UUID) string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return c.String()
}

// ReadCapabilities decodes consecutive 16-byte capability blocks. Trailing
// bytes short of a full block are ignored.
func ReadCapabilities(b data.ByteBlock) []uuid.UUID {
	var caps []uuid.UUID
	for off := 0; off+CapabilitySize <= b.Len(); off += CapabilitySize {
		c, err := uuid.FromBytes(b.Slice(off, CapabilitySize).Bytes())
		if err != nil {
			break
		}
		caps = append(caps, c)
	}
	return caps
}

// CapabilityBytes returns caps as concatenated 16-byte blocks.
func CapabilityBytes(caps ...uuid.UUID) []byte {
	out := make([]byte, 0, len(caps)*CapabilitySize)
	for _, c := range caps {
		out = append(out, c[:]...)
	}
	return out
}

// CapabilityTlv returns a TLV of type typ holding caps.
func CapabilityTlv(typ uint16, caps ...uuid.UUID) tlv.Tlv {
	return tlv.New(typ, CapabilityBytes(caps...))
}
