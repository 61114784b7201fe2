package rv

import (
	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Rendezvous statuses.
const (
	StatusRequest uint16 = 0x0000
	StatusCancel  uint16 = 0x0001
	StatusAccept  uint16 = 0x0002
)

// Request indexes. The first proposal carries 1; each redirect through a
// reverse connection or proxy increments it.
const (
	IndexInitial  uint16 = 0x0001
	IndexRedirect uint16 = 0x0002
	IndexProxy    uint16 = 0x0003
)

// Reject codes.
const (
	RejectCancelled uint16 = 0x0000
	RejectDeclined  uint16 = 0x0001
	RejectRefused   uint16 = 0x0002
)

// Command is a typed rendezvous block body.
type Command interface {
	Capability() uuid.UUID
	Status() uint16
	// Chain returns the block's TLVs in wire order.
	Chain() (tlv.Chain, error)
}

// Encode wraps cmd in a rendezvous block with the session cookie.
func Encode(cookie icbm.Cookie, cmd Command) (icbm.RvBlock, error) {
	chain, err := cmd.Chain()
	if err != nil {
		return icbm.RvBlock{}, oops.Wrapf(err, "encode rendezvous %s", cmd.Capability())
	}
	return icbm.RvBlock{
		Status:     cmd.Status(),
		Cookie:     cookie,
		Capability: cmd.Capability(),
		TLVs:       chain,
	}, nil
}

// NewSendRv returns the channel-2 ICBM delivering cmd to sn. The ICBM and
// the rendezvous share the cookie.
func NewSendRv(sn string, cookie icbm.Cookie, cmd Command) (*icbm.SendRv, error) {
	block, err := Encode(cookie, cmd)
	if err != nil {
		return nil, err
	}
	return &icbm.SendRv{Cookie: cookie, Screenname: sn, Rv: block}, nil
}

// InviteMessage is the optional text shown with a proposal.
type InviteMessage struct {
	Text     []byte
	Charset  string
	Language string
}

// NewInviteMessage encodes text in the narrowest charset that holds it.
func NewInviteMessage(text, language string) (*InviteMessage, error) {
	cs := data.MinimalCharset(text)
	b, err := data.EncodeString(text, cs)
	if err != nil {
		return nil, err
	}
	return &InviteMessage{Text: b, Charset: cs, Language: language}, nil
}

// Decode decodes the invitation text.
func (m *InviteMessage) Decode() (string, error) {
	return data.DecodeString(m.Text, m.Charset)
}

// RequestInfo is the part every proposal shares.
type RequestInfo struct {
	Index   uint16
	Conn    ConnectionInfo
	Message *InviteMessage
	// RequestHost is set by clients that will accept an incoming connection.
	RequestHost bool
	// Extra holds TLVs none of the fields above cover, written last.
	Extra tlv.Chain
}

var requestTypes = map[uint16]bool{
	TlvProxyIP: true, TlvClientIP: true, TlvVerifiedIP: true, TlvPort: true,
	TlvRequestIndex: true, TlvInviteText: true, TlvCharset: true, TlvLanguage: true,
	TlvRequestHost: true, TlvProxied: true, TlvProxyIPCheck: true, TlvPortCheck: true,
	TlvServiceData: true,
}

func readRequestInfo(c tlv.Chain) RequestInfo {
	ri := RequestInfo{Conn: ReadConnectionInfo(c), RequestHost: c.Has(TlvRequestHost)}
	ri.Index, _ = c.FirstUShort(TlvRequestIndex)
	if t, ok := c.First(TlvInviteText); ok {
		m := &InviteMessage{Text: t.Data.Bytes()}
		m.Charset, _ = c.FirstString(TlvCharset)
		m.Language, _ = c.FirstString(TlvLanguage)
		ri.Message = m
	}
	if !ri.Conn.Verified(c) {
		log.WithFields(logger.Fields{"at": "rv.readRequestInfo", "port": ri.Conn.Port}).Warn("rendezvous_check_mismatch")
	}
	extra := tlv.NewMutableChain()
	for _, t := range c.All() {
		if !requestTypes[t.Type] {
			extra.Add(t)
		}
	}
	ri.Extra = extra.Immutable()
	return ri
}

func (ri RequestInfo) chain(service *tlv.Tlv) tlv.Chain {
	m := tlv.NewMutableChain()
	if ri.Index != 0 {
		m.Add(tlv.NewUShort(TlvRequestIndex, ri.Index))
	}
	if ri.RequestHost {
		m.Add(tlv.NewEmpty(TlvRequestHost))
	}
	ri.Conn.AddTo(m)
	if ri.Message != nil {
		m.Add(tlv.New(TlvInviteText, ri.Message.Text))
		if ri.Message.Charset != "" {
			m.Add(tlv.NewString(TlvCharset, ri.Message.Charset))
		}
		if ri.Message.Language != "" {
			m.Add(tlv.NewString(TlvLanguage, ri.Message.Language))
		}
	}
	if service != nil {
		m.Add(*service)
	}
	m.AddAll(ri.Extra)
	return m.Immutable()
}
