package rv

import (
	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
)

// DecodeFunc turns a rendezvous block into a typed command.
type DecodeFunc func(icbm.RvBlock) (Command, error)

type tableKey struct {
	cap    uuid.UUID
	status uint16
}

// Table maps (capability, status) to decoders. It is immutable once built.
type Table struct {
	exact  map[tableKey]DecodeFunc
	anyCap map[uint16]DecodeFunc
}

// TableBuilder accumulates decoders for a Table.
type TableBuilder struct {
	exact  map[tableKey]DecodeFunc
	anyCap map[uint16]DecodeFunc
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{exact: map[tableKey]DecodeFunc{}, anyCap: map[uint16]DecodeFunc{}}
}

// Register adds a decoder for one capability and status.
func (b *TableBuilder) Register(capability uuid.UUID, status uint16, fn DecodeFunc) *TableBuilder {
	b.exact[tableKey{capability, status}] = fn
	return b
}

// RegisterAnyCapability adds a decoder used for status when no exact entry
// matches.
func (b *TableBuilder) RegisterAnyCapability(status uint16, fn DecodeFunc) *TableBuilder {
	b.anyCap[status] = fn
	return b
}

// Build returns an immutable Table.
func (b *TableBuilder) Build() *Table {
	t := &Table{exact: make(map[tableKey]DecodeFunc, len(b.exact)), anyCap: make(map[uint16]DecodeFunc, len(b.anyCap))}
	for k, v := range b.exact {
		t.exact[k] = v
	}
	for k, v := range b.anyCap {
		t.anyCap[k] = v
	}
	return t
}

// DefaultTable decodes file send, direct IM and get file proposals, and
// accepts and rejects for any capability.
var DefaultTable = NewTableBuilder().
	Register(snaccmd.CapSendFile, StatusRequest, decodeFileSendReq).
	Register(snaccmd.CapDirectIM, StatusRequest, decodeDirectImReq).
	Register(snaccmd.CapGetFile, StatusRequest, decodeGetFileReq).
	RegisterAnyCapability(StatusAccept, decodeAccept).
	RegisterAnyCapability(StatusCancel, decodeReject).
	Build()

// Decode decodes b. Unregistered pairs yield Generic.
func (t *Table) Decode(b icbm.RvBlock) (Command, error) {
	fn, ok := t.exact[tableKey{b.Capability, b.Status}]
	if !ok {
		fn, ok = t.anyCap[b.Status]
	}
	if !ok {
		log.WithFields(logger.Fields{
			"at":         "rv.Table.Decode",
			"capability": snaccmd.CapabilityName(b.Capability),
			"status":     b.Status,
		}).Debug("generic_rendezvous")
		return &Generic{Cap: b.Capability, Stat: b.Status, TLVs: b.TLVs}, nil
	}
	cmd, err := fn(b)
	if err != nil {
		return nil, oops.Wrapf(err, "decode rendezvous %s status %d", snaccmd.CapabilityName(b.Capability), b.Status)
	}
	return cmd, nil
}

// Decode decodes b with DefaultTable.
func Decode(b icbm.RvBlock) (Command, error) {
	return DefaultTable.Decode(b)
}
