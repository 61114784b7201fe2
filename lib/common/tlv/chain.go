package tlv

import (
	"bytes"
	"io"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/common/data"
)

var log = logger.GetGoI2PLogger()

// Chain is an immutable ordered sequence of TLVs. Repeated types are kept in
// arrival order. Lookups come in First and Last forms; which one a decoder
// uses is part of that structure's wire semantics and is chosen per field.
type Chain struct {
	tlvs []Tlv
}

// NewChain returns a chain of the given TLVs in order.
func NewChain(tlvs ...Tlv) Chain {
	c := make([]Tlv, len(tlvs))
	copy(c, tlvs)
	return Chain{tlvs: c}
}

// ReadChain decodes TLVs until b is exhausted. A truncated trailing record is
// dropped without error.
func ReadChain(b data.ByteBlock) Chain {
	c, _ := ReadChainCount(b, -1)
	return c
}

// ReadChainCount decodes at most max TLVs from b (all of them when max is
// negative) and returns the chain with the number of bytes consumed. Decoding
// stops quietly at a truncated record.
func ReadChainCount(b data.ByteBlock, max int) (Chain, int) {
	var tlvs []Tlv
	off := 0
	for max < 0 || len(tlvs) < max {
		t, n, ok := Read(b.Sub(off))
		if !ok {
			if remaining := b.Len() - off; remaining > 0 {
				log.WithFields(logger.Fields{
					"at":        "tlv.ReadChainCount",
					"offset":    off,
					"remaining": remaining,
					"parsed":    len(tlvs),
				}).Debug("truncated_trailing_tlv_dropped")
			}
			break
		}
		tlvs = append(tlvs, t)
		off += n
	}
	return Chain{tlvs: tlvs}, off
}

// Len returns the number of TLVs.
func (c Chain) Len() int {
	return len(c.tlvs)
}

// All returns a copy of the TLVs in order.
func (c Chain) All() []Tlv {
	out := make([]Tlv, len(c.tlvs))
	copy(out, c.tlvs)
	return out
}

// Has reports whether any TLV of type typ is present.
func (c Chain) Has(typ uint16) bool {
	_, ok := c.First(typ)
	return ok
}

// First returns the first TLV of type typ.
func (c Chain) First(typ uint16) (Tlv, bool) {
	for _, t := range c.tlvs {
		if t.Type == typ {
			return t, true
		}
	}
	return Tlv{}, false
}

// Last returns the last TLV of type typ.
func (c Chain) Last(typ uint16) (Tlv, bool) {
	for i := len(c.tlvs) - 1; i >= 0; i-- {
		if c.tlvs[i].Type == typ {
			return c.tlvs[i], true
		}
	}
	return Tlv{}, false
}

// Get returns every TLV of type typ in order.
func (c Chain) Get(typ uint16) []Tlv {
	var out []Tlv
	for _, t := range c.tlvs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// FirstString returns the data of the first TLV of type typ as a string.
func (c Chain) FirstString(typ uint16) (string, bool) {
	t, ok := c.First(typ)
	if !ok {
		return "", false
	}
	return t.String(), true
}

// LastString returns the data of the last TLV of type typ as a string.
func (c Chain) LastString(typ uint16) (string, bool) {
	t, ok := c.Last(typ)
	if !ok {
		return "", false
	}
	return t.String(), true
}

// FirstUShort returns the first TLV of type typ as a 16-bit value.
func (c Chain) FirstUShort(typ uint16) (uint16, bool) {
	t, ok := c.First(typ)
	if !ok {
		return 0, false
	}
	return t.UShort()
}

// LastUShort returns the last TLV of type typ as a 16-bit value.
func (c Chain) LastUShort(typ uint16) (uint16, bool) {
	t, ok := c.Last(typ)
	if !ok {
		return 0, false
	}
	return t.UShort()
}

// FirstUInt returns the first TLV of type typ as a 32-bit value.
func (c Chain) FirstUInt(typ uint16) (uint32, bool) {
	t, ok := c.First(typ)
	if !ok {
		return 0, false
	}
	return t.UInt()
}

// LastUInt returns the last TLV of type typ as a 32-bit value.
func (c Chain) LastUInt(typ uint16) (uint32, bool) {
	t, ok := c.Last(typ)
	if !ok {
		return 0, false
	}
	return t.UInt()
}

// Size returns the encoded size of the chain.
func (c Chain) Size() int {
	n := 0
	for _, t := range c.tlvs {
		n += t.Size()
	}
	return n
}

// WriteTo writes every TLV in order.
func (c Chain) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, t := range c.tlvs {
		n, err := t.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Bytes returns the encoded chain.
func (c Chain) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Mutable returns a MutableChain seeded with a copy of c.
func (c Chain) Mutable() *MutableChain {
	return &MutableChain{tlvs: c.All()}
}

// MutableChain builds a chain for output.
type MutableChain struct {
	tlvs []Tlv
}

// NewMutableChain returns an empty builder.
func NewMutableChain() *MutableChain {
	return &MutableChain{}
}

// Add appends t.
func (m *MutableChain) Add(t Tlv) *MutableChain {
	m.tlvs = append(m.tlvs, t)
	return m
}

// AddAll appends every TLV of c in order.
func (m *MutableChain) AddAll(c Chain) *MutableChain {
	m.tlvs = append(m.tlvs, c.tlvs...)
	return m
}

// Replace overwrites the first TLV of t's type in place, or appends t when
// none exists.
func (m *MutableChain) Replace(t Tlv) *MutableChain {
	for i := range m.tlvs {
		if m.tlvs[i].Type == t.Type {
			m.tlvs[i] = t
			return m
		}
	}
	return m.Add(t)
}

// Remove deletes every TLV of type typ.
func (m *MutableChain) Remove(typ uint16) *MutableChain {
	kept := m.tlvs[:0]
	for _, t := range m.tlvs {
		if t.Type != typ {
			kept = append(kept, t)
		}
	}
	m.tlvs = kept
	return m
}

// Len returns the number of TLVs so far.
func (m *MutableChain) Len() int {
	return len(m.tlvs)
}

// Immutable returns a snapshot of the builder's TLVs.
func (m *MutableChain) Immutable() Chain {
	return NewChain(m.tlvs...)
}
