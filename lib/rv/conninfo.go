package rv

import (
	"net/netip"

	"github.com/minecraftim/go-oscar/lib/common/tlv"
)

// Rendezvous TLV types.
const (
	TlvProxyIP      uint16 = 0x0002
	TlvClientIP     uint16 = 0x0003
	TlvVerifiedIP   uint16 = 0x0004
	TlvPort         uint16 = 0x0005
	TlvRequestIndex uint16 = 0x000a
	TlvRejectCode   uint16 = 0x000b
	TlvInviteText   uint16 = 0x000c
	TlvCharset      uint16 = 0x000d
	TlvLanguage     uint16 = 0x000e
	TlvRequestHost  uint16 = 0x000f
	TlvProxied      uint16 = 0x0010
	TlvProxyIPCheck uint16 = 0x0016
	TlvPortCheck    uint16 = 0x0017
	TlvServiceData  uint16 = 0x2711
)

// ConnectionInfo is where the proposing client can be reached. Zero
// addresses and port are absent.
type ConnectionInfo struct {
	InternalIP netip.Addr
	ExternalIP netip.Addr
	ProxyIP    netip.Addr
	Port       uint16
	HasPort    bool
	Proxied    bool
}

func readIP(c tlv.Chain, typ uint16) netip.Addr {
	t, ok := c.First(typ)
	if !ok || t.Data.Len() != 4 {
		return netip.Addr{}
	}
	return netip.AddrFrom4([4]byte(t.Data.Bytes()))
}

func ipTlv(typ uint16, ip netip.Addr) tlv.Tlv {
	b := ip.As4()
	return tlv.New(typ, b[:])
}

// ReadConnectionInfo extracts connection info from a rendezvous chain.
func ReadConnectionInfo(c tlv.Chain) ConnectionInfo {
	ci := ConnectionInfo{
		InternalIP: readIP(c, TlvClientIP),
		ExternalIP: readIP(c, TlvVerifiedIP),
		ProxyIP:    readIP(c, TlvProxyIP),
		Proxied:    c.Has(TlvProxied),
	}
	ci.Port, ci.HasPort = c.FirstUShort(TlvPort)
	return ci
}

// AddTo appends the connection TLVs to m. The proxy IP and port are
// followed by their bitwise complements, which receivers check.
func (ci ConnectionInfo) AddTo(m *tlv.MutableChain) {
	if ci.ProxyIP.Is4() {
		m.Add(ipTlv(TlvProxyIP, ci.ProxyIP))
		b := ci.ProxyIP.As4()
		m.Add(tlv.New(TlvProxyIPCheck, []byte{^b[0], ^b[1], ^b[2], ^b[3]}))
	}
	if ci.InternalIP.Is4() {
		m.Add(ipTlv(TlvClientIP, ci.InternalIP))
	}
	if ci.ExternalIP.Is4() {
		m.Add(ipTlv(TlvVerifiedIP, ci.ExternalIP))
	}
	if ci.HasPort {
		m.Add(tlv.NewUShort(TlvPort, ci.Port))
		m.Add(tlv.NewUShort(TlvPortCheck, ^ci.Port))
	}
	if ci.Proxied {
		m.Add(tlv.NewEmpty(TlvProxied))
	}
}

// Verified reports whether the proxy IP and port checks, when present,
// match their values.
func (ci ConnectionInfo) Verified(c tlv.Chain) bool {
	if chk, ok := c.FirstUShort(TlvPortCheck); ok && ci.HasPort && chk != ^ci.Port {
		return false
	}
	if t, ok := c.First(TlvProxyIPCheck); ok && ci.ProxyIP.Is4() {
		b := ci.ProxyIP.As4()
		if t.Data.Len() != 4 {
			return false
		}
		for i := 0; i < 4; i++ {
			if t.Data.At(i) != ^b[i] {
				return false
			}
		}
	}
	return true
}

// AddrPort returns the address to dial: the proxy when proxied, else the
// internal address.
func (ci ConnectionInfo) AddrPort() (netip.AddrPort, bool) {
	ip := ci.InternalIP
	if ci.Proxied {
		ip = ci.ProxyIP
	}
	if !ip.IsValid() || !ci.HasPort {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(ip, ci.Port), true
}
