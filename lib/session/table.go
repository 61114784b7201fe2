package session

import (
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/auth"
	"github.com/minecraftim/go-oscar/lib/snaccmd/buddy"
	"github.com/minecraftim/go-oscar/lib/snaccmd/chat"
	"github.com/minecraftim/go-oscar/lib/snaccmd/chatnav"
	"github.com/minecraftim/go-oscar/lib/snaccmd/conn"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/minecraftim/go-oscar/lib/snaccmd/loc"
	"github.com/minecraftim/go-oscar/lib/snaccmd/search"
)

// NewTable returns a table that decodes every family this module implements.
func NewTable() *snac.Table {
	b := snac.NewTableBuilder()
	snaccmd.RegisterErrors(b)
	conn.Register(b)
	auth.Register(b)
	loc.Register(b)
	buddy.Register(b)
	icbm.Register(b)
	chatnav.Register(b)
	chat.Register(b)
	search.Register(b)
	return b.Build()
}
