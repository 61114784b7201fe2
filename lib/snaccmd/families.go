package snaccmd

import (
	"fmt"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/snac"
)

// SNAC families.
const (
	FamilyConn      uint16 = 0x0001
	FamilyLoc       uint16 = 0x0002
	FamilyBuddy     uint16 = 0x0003
	FamilyIcbm      uint16 = 0x0004
	FamilyAdvert    uint16 = 0x0005
	FamilyInvite    uint16 = 0x0006
	FamilyAdmin     uint16 = 0x0007
	FamilyPopup     uint16 = 0x0008
	FamilyBos       uint16 = 0x0009
	FamilySearch    uint16 = 0x000a
	FamilyStats     uint16 = 0x000b
	FamilyTranslate uint16 = 0x000c
	FamilyChatNav   uint16 = 0x000d
	FamilyChat      uint16 = 0x000e
	FamilySsi       uint16 = 0x0013
	FamilyIcq       uint16 = 0x0015
	FamilyAuth      uint16 = 0x0017
)

// FamilyName returns a readable name for a SNAC family.
func FamilyName(family uint16) string {
	switch family {
	case FamilyConn:
		return "conn"
	case FamilyLoc:
		return "loc"
	case FamilyBuddy:
		return "buddy"
	case FamilyIcbm:
		return "icbm"
	case FamilyAdvert:
		return "advert"
	case FamilyInvite:
		return "invite"
	case FamilyAdmin:
		return "admin"
	case FamilyPopup:
		return "popup"
	case FamilyBos:
		return "bos"
	case FamilySearch:
		return "search"
	case FamilyStats:
		return "stats"
	case FamilyTranslate:
		return "translate"
	case FamilyChatNav:
		return "chatnav"
	case FamilyChat:
		return "chat"
	case FamilySsi:
		return "ssi"
	case FamilyIcq:
		return "icq"
	case FamilyAuth:
		return "auth"
	}
	return fmt.Sprintf("family-0x%04x", family)
}

// Body returns a reader over the command body of p, past any
// extra-information block.
func Body(p snac.Packet) *data.Reader {
	return data.NewReader(p.Payload())
}
