package snaccmd

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/samber/oops"
)

// User info TLV types.
const (
	TlvUserFlags      uint16 = 0x0001
	TlvMemberSince    uint16 = 0x0002
	TlvOnlineSince    uint16 = 0x0003
	TlvIdleMinutes    uint16 = 0x0004
	TlvAccountCreated uint16 = 0x0005
	TlvIcqStatus      uint16 = 0x0006
	TlvCapabilities   uint16 = 0x000d
	TlvSessionLength  uint16 = 0x000f
	TlvAolSession     uint16 = 0x0010
)

// User flag bits carried in TlvUserFlags.
const (
	UserFlagUnconfirmed uint16 = 0x0001
	UserFlagAdmin       uint16 = 0x0002
	UserFlagAol         uint16 = 0x0004
	UserFlagOscarPay    uint16 = 0x0008
	UserFlagFree        uint16 = 0x0010
	UserFlagAway        uint16 = 0x0020
	UserFlagIcq         uint16 = 0x0040
	UserFlagWireless    uint16 = 0x0080
)

// FullUserInfo is the user block that begins buddy status, incoming IM and
// chat membership commands:
//
//	sn_len:u8 | sn | warning:u16 | tlv_count:u16 | tlvs
//
// Field lookups take the last TLV of a type; servers append updated values
// after stale ones.
type FullUserInfo struct {
	Screenname   string
	WarningLevel uint16
	TLVs         tlv.Chain
}

// ReadFullUserInfo decodes a user block from the start of b and returns the
// number of bytes consumed.
func ReadFullUserInfo(b data.ByteBlock) (FullUserInfo, int, error) {
	r := data.NewReader(b)
	info := FullUserInfo{
		Screenname:   r.String8(),
		WarningLevel: r.UShort(),
	}
	count := int(r.UShort())
	if err := r.Err(); err != nil {
		return FullUserInfo{}, 0, oops.Wrapf(err, "read user info header")
	}
	chain, n := tlv.ReadChainCount(b.Sub(r.Pos()), count)
	info.TLVs = chain
	return info, r.Pos() + n, nil
}

// WriteTo writes the user block to w.
func (u FullUserInfo) WriteTo(w io.Writer) (int64, error) {
	dw := data.NewWriter(w)
	dw.String8(u.Screenname)
	dw.UShort(u.WarningLevel)
	dw.UShort(uint16(u.TLVs.Len()))
	if err := dw.Err(); err != nil {
		return dw.Count(), err
	}
	n, err := u.TLVs.WriteTo(w)
	return dw.Count() + n, err
}

// Flags returns the user class flags.
func (u FullUserInfo) Flags() (uint16, bool) {
	return u.TLVs.LastUShort(TlvUserFlags)
}

// Away reports whether the away flag is set.
func (u FullUserInfo) Away() bool {
	f, ok := u.Flags()
	return ok && f&UserFlagAway != 0
}

// OnlineSince returns the time the user signed on.
func (u FullUserInfo) OnlineSince() (time.Time, bool) {
	v, ok := u.TLVs.LastUInt(TlvOnlineSince)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0), true
}

// MemberSince returns the account creation time.
func (u FullUserInfo) MemberSince() (time.Time, bool) {
	v, ok := u.TLVs.LastUInt(TlvMemberSince)
	if !ok {
		v, ok = u.TLVs.LastUInt(TlvAccountCreated)
	}
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0), true
}

// IdleTime returns how long the user has been idle.
func (u FullUserInfo) IdleTime() (time.Duration, bool) {
	v, ok := u.TLVs.LastUShort(TlvIdleMinutes)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Minute, true
}

// Capabilities returns the advertised capability UUIDs.
func (u FullUserInfo) Capabilities() []uuid.UUID {
	t, ok := u.TLVs.Last(TlvCapabilities)
	if !ok {
		return nil
	}
	return ReadCapabilities(t.Data)
}

// ReadUserInfos decodes consecutive user blocks until b is exhausted. A
// truncated trailing block is dropped.
func ReadUserInfos(b data.ByteBlock) []FullUserInfo {
	var out []FullUserInfo
	off := 0
	for off < b.Len() {
		info, n, err := ReadFullUserInfo(b.Sub(off))
		if err != nil || n == 0 {
			break
		}
		out = append(out, info)
		off += n
	}
	return out
}
