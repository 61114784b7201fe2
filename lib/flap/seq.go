package flap

import "sync/atomic"

// SeqGen hands out FLAP sequence numbers. Values increase by one per call and
// wrap from 0xFFFF to 0 without skipping. Safe for concurrent use.
type SeqGen struct {
	n atomic.Uint32
}

// NewSeqGen returns a generator whose first value is start.
func NewSeqGen(start uint16) *SeqGen {
	g := &SeqGen{}
	g.n.Store(uint32(start))
	return g
}

// Next returns the next sequence number.
func (g *SeqGen) Next() uint16 {
	// 2^32 is a multiple of 2^16, so truncation wraps cleanly even when the
	// 32-bit counter itself overflows.
	return uint16(g.n.Add(1) - 1)
}

// Peek returns the value the next call to Next will return.
func (g *SeqGen) Peek() uint16 {
	return uint16(g.n.Load())
}
