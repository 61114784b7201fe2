// Package auth implements SNAC family 0x0017, the MD5 challenge login used
// on the authorization server before the client is handed to a BOS server.
package auth

import (
	"crypto/md5"
	"fmt"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/samber/oops"
)

// Family is the SNAC family of this package's commands.
const Family = snaccmd.FamilyAuth

// Subtypes.
const (
	SubtypeAuthRequest  uint16 = 0x0002
	SubtypeAuthResponse uint16 = 0x0003
	SubtypeKeyRequest   uint16 = 0x0006
	SubtypeKeyResponse  uint16 = 0x0007
)

// TLV types used by the login commands.
const (
	TlvScreenname     uint16 = 0x0001
	TlvClientName     uint16 = 0x0003
	TlvErrorURL       uint16 = 0x0004
	TlvBosServer      uint16 = 0x0005
	TlvCookie         uint16 = 0x0006
	TlvErrorCode      uint16 = 0x0008
	TlvCountry        uint16 = 0x000e
	TlvLanguage       uint16 = 0x000f
	TlvEmail          uint16 = 0x0011
	TlvRegStatus      uint16 = 0x0013
	TlvDistribution   uint16 = 0x0014
	TlvClientID       uint16 = 0x0016
	TlvMajorVersion   uint16 = 0x0017
	TlvMinorVersion   uint16 = 0x0018
	TlvPointVersion   uint16 = 0x0019
	TlvBuildVersion   uint16 = 0x001a
	TlvPasswordHash   uint16 = 0x0025
	TlvSsiFlag        uint16 = 0x004a
	TlvNewHash        uint16 = 0x004c
	TlvChangePassword uint16 = 0x0054
)

// Login error codes carried in TlvErrorCode.
const (
	ErrorInvalidScreenname uint16 = 0x0001
	ErrorServiceDown       uint16 = 0x0002
	ErrorOtherError        uint16 = 0x0003
	ErrorBadPassword       uint16 = 0x0004
	ErrorMismatch          uint16 = 0x0005
	ErrorInvalidAccount    uint16 = 0x0007
	ErrorDeletedAccount    uint16 = 0x0008
	ErrorExpiredAccount    uint16 = 0x0009
	ErrorSuspended         uint16 = 0x0011
	ErrorRateLimited       uint16 = 0x0018
	ErrorClientTooOld      uint16 = 0x001c
)

// ErrorName returns a readable name for a login error code.
func ErrorName(code uint16) string {
	switch code {
	case ErrorInvalidScreenname:
		return "invalid screen name"
	case ErrorServiceDown:
		return "service temporarily unavailable"
	case ErrorOtherError:
		return "login error"
	case ErrorBadPassword:
		return "incorrect password"
	case ErrorMismatch:
		return "screen name and password mismatch"
	case ErrorInvalidAccount:
		return "invalid account"
	case ErrorDeletedAccount:
		return "account deleted"
	case ErrorExpiredAccount:
		return "account expired"
	case ErrorSuspended:
		return "account suspended"
	case ErrorRateLimited:
		return "connecting too frequently"
	case ErrorClientTooOld:
		return "client version too old"
	}
	return fmt.Sprintf("login error 0x%04x", code)
}

// Register adds this family's decoders to b.
func Register(b *snac.TableBuilder) {
	b.Register(Family, SubtypeKeyRequest, DecodeKeyRequest)
	b.Register(Family, SubtypeKeyResponse, DecodeKeyResponse)
	b.Register(Family, SubtypeAuthRequest, DecodeAuthRequest)
	b.Register(Family, SubtypeAuthResponse, DecodeAuthResponse)
}

// md5Suffix is appended to every login hash.
const md5Suffix = "AOL Instant Messenger (SM)"

// HashPassword returns md5(key + md5(password) + suffix), the hash sent when
// TlvNewHash is present.
func HashPassword(key []byte, password string) []byte {
	inner := md5.Sum([]byte(password))
	h := md5.New()
	h.Write(key)
	h.Write(inner[:])
	h.Write([]byte(md5Suffix))
	return h.Sum(nil)
}

// HashPasswordLegacy returns md5(key + password + suffix), the hash older
// servers expect without TlvNewHash.
func HashPasswordLegacy(key []byte, password string) []byte {
	h := md5.New()
	h.Write(key)
	h.Write([]byte(password))
	h.Write([]byte(md5Suffix))
	return h.Sum(nil)
}

// ClientInfo identifies the client software at login.
type ClientInfo struct {
	Name         string
	ID           uint16
	Major        uint16
	Minor        uint16
	Point        uint16
	Build        uint16
	Distribution uint32
	Language     string
	Country      string
}

// DefaultClientInfo is the identity of the AIM 5.1 Windows client, which
// servers accept for MD5 login.
var DefaultClientInfo = ClientInfo{
	Name:         "AOL Instant Messenger, version 5.1.3036/WIN32",
	ID:           0x0109,
	Major:        5,
	Minor:        1,
	Point:        0,
	Build:        3036,
	Distribution: 0x000000d2,
	Language:     "en",
	Country:      "us",
}

func (ci ClientInfo) tlvs() []tlv.Tlv {
	return []tlv.Tlv{
		tlv.NewString(TlvClientName, ci.Name),
		tlv.NewUShort(TlvClientID, ci.ID),
		tlv.NewUShort(TlvMajorVersion, ci.Major),
		tlv.NewUShort(TlvMinorVersion, ci.Minor),
		tlv.NewUShort(TlvPointVersion, ci.Point),
		tlv.NewUShort(TlvBuildVersion, ci.Build),
		tlv.NewUInt(TlvDistribution, ci.Distribution),
		tlv.NewString(TlvLanguage, ci.Language),
		tlv.NewString(TlvCountry, ci.Country),
	}
}

func readClientInfo(c tlv.Chain) ClientInfo {
	var ci ClientInfo
	ci.Name, _ = c.FirstString(TlvClientName)
	ci.ID, _ = c.FirstUShort(TlvClientID)
	ci.Major, _ = c.FirstUShort(TlvMajorVersion)
	ci.Minor, _ = c.FirstUShort(TlvMinorVersion)
	ci.Point, _ = c.FirstUShort(TlvPointVersion)
	ci.Build, _ = c.FirstUShort(TlvBuildVersion)
	ci.Distribution, _ = c.FirstUInt(TlvDistribution)
	ci.Language, _ = c.FirstString(TlvLanguage)
	ci.Country, _ = c.FirstString(TlvCountry)
	return ci
}

// KeyRequest asks for the MD5 challenge key for a screen name.
type KeyRequest struct {
	Screenname string
	TLVs       tlv.Chain
}

// NewKeyRequest returns a KeyRequest for sn.
func NewKeyRequest(sn string) *KeyRequest {
	return &KeyRequest{Screenname: sn}
}

// DecodeKeyRequest decodes a KeyRequest.
func DecodeKeyRequest(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	sn, _ := chain.FirstString(TlvScreenname)
	return &KeyRequest{Screenname: sn, TLVs: chain}, nil
}

func (c *KeyRequest) Family() uint16  { return Family }
func (c *KeyRequest) Subtype() uint16 { return SubtypeKeyRequest }

func (c *KeyRequest) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain().Add(tlv.NewString(TlvScreenname, c.Screenname))
	for _, t := range c.TLVs.All() {
		if t.Type != TlvScreenname {
			m.Add(t)
		}
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}

// KeyResponse carries the challenge key.
type KeyResponse struct {
	Key []byte
}

// DecodeKeyResponse decodes a KeyResponse.
func DecodeKeyResponse(p snac.Packet) (snac.Command, error) {
	r := snaccmd.Body(p)
	n := int(r.UShort())
	key := r.Block(n)
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "auth key")
	}
	return &KeyResponse{Key: key.Bytes()}, nil
}

func (c *KeyResponse) Family() uint16  { return Family }
func (c *KeyResponse) Subtype() uint16 { return SubtypeKeyResponse }

func (c *KeyResponse) WriteData(w io.Writer) error {
	if len(c.Key) > data.MaxUShort {
		return oops.Wrapf(data.ErrValueRange, "auth key is %d bytes", len(c.Key))
	}
	dw := data.NewWriter(w)
	dw.UShort(uint16(len(c.Key)))
	dw.Write(c.Key)
	return dw.Err()
}

// AuthRequest is the hashed login.
type AuthRequest struct {
	Screenname string
	Hash       []byte
	Client     ClientInfo
	NewHash    bool
}

// NewAuthRequest returns a login request using the current hash scheme.
func NewAuthRequest(sn, password string, key []byte, client ClientInfo) *AuthRequest {
	return &AuthRequest{
		Screenname: sn,
		Hash:       HashPassword(key, password),
		Client:     client,
		NewHash:    true,
	}
}

// DecodeAuthRequest decodes an AuthRequest.
func DecodeAuthRequest(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	cmd := &AuthRequest{Client: readClientInfo(chain), NewHash: chain.Has(TlvNewHash)}
	cmd.Screenname, _ = chain.FirstString(TlvScreenname)
	if t, ok := chain.First(TlvPasswordHash); ok {
		cmd.Hash = t.Data.Bytes()
	}
	return cmd, nil
}

func (c *AuthRequest) Family() uint16  { return Family }
func (c *AuthRequest) Subtype() uint16 { return SubtypeAuthRequest }

func (c *AuthRequest) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain().
		Add(tlv.NewString(TlvScreenname, c.Screenname)).
		Add(tlv.New(TlvPasswordHash, c.Hash))
	for _, t := range c.Client.tlvs() {
		m.Add(t)
	}
	m.Add(tlv.New(TlvSsiFlag, []byte{0x01}))
	if c.NewHash {
		m.Add(tlv.NewEmpty(TlvNewHash))
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}

// AuthResponse either hands the client to a BOS server with a cookie or
// reports a login error.
type AuthResponse struct {
	Screenname string
	BosServer  string
	Cookie     []byte
	Email      string
	RegStatus  uint16
	// ErrorCode is zero on success.
	ErrorCode uint16
	ErrorURL  string
	TLVs      tlv.Chain
}

// DecodeAuthResponse decodes an AuthResponse. Each field takes the first TLV
// of its type.
func DecodeAuthResponse(p snac.Packet) (snac.Command, error) {
	chain := tlv.ReadChain(p.Payload())
	return AuthResponseFromTLVs(chain), nil
}

// AuthResponseFromTLVs reads the login result fields from a chain. Older
// servers send the same TLVs in a FLAP close command instead of a SNAC.
func AuthResponseFromTLVs(chain tlv.Chain) *AuthResponse {
	cmd := &AuthResponse{TLVs: chain}
	cmd.Screenname, _ = chain.FirstString(TlvScreenname)
	cmd.BosServer, _ = chain.FirstString(TlvBosServer)
	if t, ok := chain.First(TlvCookie); ok {
		cmd.Cookie = t.Data.Bytes()
	}
	cmd.Email, _ = chain.FirstString(TlvEmail)
	cmd.RegStatus, _ = chain.FirstUShort(TlvRegStatus)
	cmd.ErrorCode, _ = chain.FirstUShort(TlvErrorCode)
	cmd.ErrorURL, _ = chain.FirstString(TlvErrorURL)
	return cmd
}

// Succeeded reports whether the response carries a BOS server and cookie.
func (c *AuthResponse) Succeeded() bool {
	return c.ErrorCode == 0 && c.BosServer != "" && len(c.Cookie) > 0
}

func (c *AuthResponse) Family() uint16  { return Family }
func (c *AuthResponse) Subtype() uint16 { return SubtypeAuthResponse }

func (c *AuthResponse) WriteData(w io.Writer) error {
	m := tlv.NewMutableChain().Add(tlv.NewString(TlvScreenname, c.Screenname))
	if c.ErrorCode != 0 {
		m.Add(tlv.NewUShort(TlvErrorCode, c.ErrorCode))
		if c.ErrorURL != "" {
			m.Add(tlv.NewString(TlvErrorURL, c.ErrorURL))
		}
	} else {
		m.Add(tlv.NewString(TlvBosServer, c.BosServer))
		m.Add(tlv.New(TlvCookie, c.Cookie))
		if c.Email != "" {
			m.Add(tlv.NewString(TlvEmail, c.Email))
		}
		if c.RegStatus != 0 {
			m.Add(tlv.NewUShort(TlvRegStatus, c.RegStatus))
		}
	}
	_, err := m.Immutable().WriteTo(w)
	return err
}
