package snac

import (
	"sort"

	"github.com/samber/oops"
)

// DecodeFunc turns a packet into a typed command.
type DecodeFunc func(Packet) (Command, error)

// Table maps (family, subtype) to decoders. It cannot be changed after
// Build, so one table may be shared by every processor.
type Table struct {
	exact    map[Key]DecodeFunc
	anyFam   map[uint16]DecodeFunc
	families map[uint16]struct{}
}

// TableBuilder collects decoders for a Table.
type TableBuilder struct {
	exact  map[Key]DecodeFunc
	anyFam map[uint16]DecodeFunc
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{
		exact:  make(map[Key]DecodeFunc),
		anyFam: make(map[uint16]DecodeFunc),
	}
}

// Register sets the decoder for (family, subtype), replacing any earlier one.
func (b *TableBuilder) Register(family, subtype uint16, fn DecodeFunc) *TableBuilder {
	b.exact[Key{Family: family, Subtype: subtype}] = fn
	return b
}

// RegisterAnyFamily sets a fallback decoder for subtype in every family that
// has no exact registration for it. SNAC errors use subtype 0x0001 this way.
func (b *TableBuilder) RegisterAnyFamily(subtype uint16, fn DecodeFunc) *TableBuilder {
	b.anyFam[subtype] = fn
	return b
}

// Build returns the immutable table.
func (b *TableBuilder) Build() *Table {
	t := &Table{
		exact:    make(map[Key]DecodeFunc, len(b.exact)),
		anyFam:   make(map[uint16]DecodeFunc, len(b.anyFam)),
		families: make(map[uint16]struct{}),
	}
	for k, fn := range b.exact {
		t.exact[k] = fn
		t.families[k.Family] = struct{}{}
	}
	for st, fn := range b.anyFam {
		t.anyFam[st] = fn
	}
	return t
}

func (t *Table) lookup(k Key) (DecodeFunc, bool) {
	if fn, ok := t.exact[k]; ok {
		return fn, true
	}
	fn, ok := t.anyFam[k.Subtype]
	return fn, ok
}

// Has reports whether a decoder exists for (family, subtype).
func (t *Table) Has(family, subtype uint16) bool {
	_, ok := t.lookup(Key{Family: family, Subtype: subtype})
	return ok
}

// Families returns the families with at least one exact registration, in
// ascending order.
func (t *Table) Families() []uint16 {
	out := make([]uint16, 0, len(t.families))
	for f := range t.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Decode returns the typed command for p. It returns nil and no error when
// no decoder is registered.
func (t *Table) Decode(p Packet) (Command, error) {
	fn, ok := t.lookup(p.Key())
	if !ok {
		return nil, nil
	}
	cmd, err := fn(p)
	if err != nil {
		return nil, oops.Wrapf(err, "decode snac %s", p.Key())
	}
	return cmd, nil
}
