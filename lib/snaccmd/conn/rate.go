package conn

import (
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// rateClassSize is the encoded size of one rate class.
const rateClassSize = 35

// RateClass is one server rate class. Levels are moving averages of the
// milliseconds between commands.
type RateClass struct {
	ID              uint16
	WindowSize      uint32
	ClearLevel      uint32
	AlertLevel      uint32
	LimitedLevel    uint32
	DisconnectLevel uint32
	CurrentLevel    uint32
	MaxLevel        uint32
	LastTime        uint32
	State           uint8
	// Members are the commands governed by this class.
	Members []snac.Key
}

func readRateClass(r *data.Reader) RateClass {
	return RateClass{
		ID:              r.UShort(),
		WindowSize:      r.UInt(),
		ClearLevel:      r.UInt(),
		AlertLevel:      r.UInt(),
		LimitedLevel:    r.UInt(),
		DisconnectLevel: r.UInt(),
		CurrentLevel:    r.UInt(),
		MaxLevel:        r.UInt(),
		LastTime:        r.UInt(),
		State:           r.UByte(),
	}
}

func (rc RateClass) write(w *data.Writer) {
	w.UShort(rc.ID)
	w.UInt(rc.WindowSize)
	w.UInt(rc.ClearLevel)
	w.UInt(rc.AlertLevel)
	w.UInt(rc.LimitedLevel)
	w.UInt(rc.DisconnectLevel)
	w.UInt(rc.CurrentLevel)
	w.UInt(rc.MaxLevel)
	w.UInt(rc.LastTime)
	w.UByte(rc.State)
}

// Params returns the limiter parameters for this class.
func (rc RateClass) Params() snac.RateParams {
	return snac.RateParams{
		ClassID:    rc.ID,
		WindowSize: rc.WindowSize,
		ClearLevel: rc.ClearLevel,
		MaxLevel:   rc.MaxLevel,
	}
}

// RateInfo lists the server's rate classes and their member commands.
type RateInfo struct {
	Classes []RateClass
}

// DecodeRateInfo decodes a RateInfo. A member section cut short by the end
// of the body is kept up to the last complete entry.
func DecodeRateInfo(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	count := int(r.UShort())
	cmd := &RateInfo{}
	for i := 0; i < count; i++ {
		rc := readRateClass(r)
		if r.Err() != nil {
			return nil, oops.Wrapf(r.Err(), "rate class %d of %d", i+1, count)
		}
		cmd.Classes = append(cmd.Classes, rc)
	}
	if r.Err() != nil {
		return nil, oops.Wrapf(r.Err(), "rate class count")
	}

	byID := make(map[uint16]int, len(cmd.Classes))
	for i, rc := range cmd.Classes {
		byID[rc.ID] = i
	}
	for r.Remaining() >= 4 {
		id := r.UShort()
		n := int(r.UShort())
		var members []snac.Key
		for j := 0; j < n && r.Remaining() >= 4; j++ {
			members = append(members, snac.Key{Family: r.UShort(), Subtype: r.UShort()})
		}
		if idx, ok := byID[id]; ok {
			cmd.Classes[idx].Members = append(cmd.Classes[idx].Members, members...)
		}
	}
	return cmd, nil
}

func (c *RateInfo) Family() uint16  { return Family }
func (c *RateInfo) Subtype() uint16 { return SubtypeRateInfo }

func (c *RateInfo) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(uint16(len(c.Classes)))
	for _, rc := range c.Classes {
		rc.write(dw)
	}
	for _, rc := range c.Classes {
		dw.UShort(rc.ID)
		dw.UShort(uint16(len(rc.Members)))
		for _, k := range rc.Members {
			dw.UShort(k.Family)
			dw.UShort(k.Subtype)
		}
	}
	return dw.Err()
}

// ClassIDs returns the IDs of every class, for the RateAck.
func (c *RateInfo) ClassIDs() []uint16 {
	ids := make([]uint16, len(c.Classes))
	for i, rc := range c.Classes {
		ids[i] = rc.ID
	}
	return ids
}

// Limits returns the limiter parameters and command membership for
// snac.RateLimiter.Configure.
func (c *RateInfo) Limits() ([]snac.RateParams, map[snac.Key]uint16) {
	params := make([]snac.RateParams, len(c.Classes))
	members := make(map[snac.Key]uint16)
	for i, rc := range c.Classes {
		params[i] = rc.Params()
		for _, k := range rc.Members {
			members[k] = rc.ID
		}
	}
	return params, members
}

// RateAck acknowledges rate classes.
type RateAck struct {
	ClassIDs []uint16
}

// DecodeRateAck decodes a RateAck.
func DecodeRateAck(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &RateAck{}
	for r.Remaining() >= 2 {
		cmd.ClassIDs = append(cmd.ClassIDs, r.UShort())
	}
	return cmd, nil
}

func (c *RateAck) Family() uint16  { return Family }
func (c *RateAck) Subtype() uint16 { return SubtypeRateAck }

func (c *RateAck) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	for _, id := range c.ClassIDs {
		dw.UShort(id)
	}
	return dw.Err()
}

// Rate change codes.
const (
	RateChangeParams  uint16 = 0x0001
	RateChangeWarning uint16 = 0x0002
	RateChangeLimited uint16 = 0x0003
	RateChangeClear   uint16 = 0x0004
)

// RateChange reports new parameters or a state change for one class.
type RateChange struct {
	Code  uint16
	Class RateClass
}

// DecodeRateChange decodes a RateChange.
func DecodeRateChange(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	cmd := &RateChange{Code: r.UShort()}
	cmd.Class = readRateClass(r)
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "rate change")
	}
	return cmd, nil
}

func (c *RateChange) Family() uint16  { return Family }
func (c *RateChange) Subtype() uint16 { return SubtypeRateChange }

func (c *RateChange) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(c.Code)
	c.Class.write(dw)
	return dw.Err()
}
