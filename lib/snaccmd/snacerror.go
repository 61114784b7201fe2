package snaccmd

import (
	"fmt"
	"io"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/samber/oops"
)

// SubtypeError is the error subtype shared by every family.
const SubtypeError uint16 = 0x0001

// TlvErrorSubcode holds a family-specific detail code in a SNAC error.
const TlvErrorSubcode uint16 = 0x0008

// SNAC error codes.
const (
	ErrorInvalidSnac        uint16 = 0x0001
	ErrorRateToHost         uint16 = 0x0002
	ErrorRateToClient       uint16 = 0x0003
	ErrorNotLoggedIn        uint16 = 0x0004
	ErrorServiceUnavailable uint16 = 0x0005
	ErrorServiceUndefined   uint16 = 0x0006
	ErrorObsoleteSnac       uint16 = 0x0007
	ErrorNotSupportedByHost uint16 = 0x0008
	ErrorNotSupportedClient uint16 = 0x0009
	ErrorRefusedByClient    uint16 = 0x000a
	ErrorReplyTooBig        uint16 = 0x000b
	ErrorResponsesLost      uint16 = 0x000c
	ErrorRequestDenied      uint16 = 0x000d
	ErrorBadSnacFormat      uint16 = 0x000e
	ErrorInsufficientRights uint16 = 0x000f
	ErrorRecipientBlocked   uint16 = 0x0010
	ErrorSenderTooEvil      uint16 = 0x0011
	ErrorReceiverTooEvil    uint16 = 0x0012
	ErrorUserUnavailable    uint16 = 0x0013
	ErrorNoMatch            uint16 = 0x0014
	ErrorListOverflow       uint16 = 0x0015
	ErrorRequestAmbiguous   uint16 = 0x0016
	ErrorQueueFull          uint16 = 0x0017
	ErrorNotWhileOnAol      uint16 = 0x0018
)

var errorNames = map[uint16]string{
	ErrorInvalidSnac:        "invalid snac",
	ErrorRateToHost:         "rate limit to host",
	ErrorRateToClient:       "rate limit to client",
	ErrorNotLoggedIn:        "recipient not logged in",
	ErrorServiceUnavailable: "service unavailable",
	ErrorServiceUndefined:   "service not defined",
	ErrorObsoleteSnac:       "obsolete snac",
	ErrorNotSupportedByHost: "not supported by host",
	ErrorNotSupportedClient: "not supported by client",
	ErrorRefusedByClient:    "refused by client",
	ErrorReplyTooBig:        "reply too big",
	ErrorResponsesLost:      "responses lost",
	ErrorRequestDenied:      "request denied",
	ErrorBadSnacFormat:      "bad snac format",
	ErrorInsufficientRights: "insufficient rights",
	ErrorRecipientBlocked:   "recipient blocked",
	ErrorSenderTooEvil:      "sender too evil",
	ErrorReceiverTooEvil:    "receiver too evil",
	ErrorUserUnavailable:    "user temporarily unavailable",
	ErrorNoMatch:            "no match",
	ErrorListOverflow:       "list overflow",
	ErrorRequestAmbiguous:   "request ambiguous",
	ErrorQueueFull:          "queue full",
	ErrorNotWhileOnAol:      "not while on aol",
}

// ErrorName returns a readable name for a SNAC error code.
func ErrorName(code uint16) string {
	if name, ok := errorNames[code]; ok {
		return name
	}
	return fmt.Sprintf("error 0x%04x", code)
}

// SnacError is the subtype 0x0001 error reply of any family.
type SnacError struct {
	Fam  uint16
	Code uint16
	TLVs tlv.Chain
}

// NewSnacError returns an error command for family.
func NewSnacError(family, code uint16) *SnacError {
	return &SnacError{Fam: family, Code: code}
}

// DecodeSnacError decodes a SNAC error of any family. An empty body decodes
// as code zero.
func DecodeSnacError(p snac.Packet) (snac.Command, error) {
	body := p.Payload()
	cmd := &SnacError{Fam: p.Family}
	if body.Len() == 0 {
		return cmd, nil
	}
	r := data.NewReader(body)
	cmd.Code = r.UShort()
	if err := r.Err(); err != nil {
		return nil, oops.Wrapf(err, "snac error code")
	}
	cmd.TLVs = tlv.ReadChain(r.Rest())
	return cmd, nil
}

func (e *SnacError) Family() uint16  { return e.Fam }
func (e *SnacError) Subtype() uint16 { return SubtypeError }

func (e *SnacError) WriteData(w io.Writer) error {
	dw := data.NewWriter(w)
	dw.UShort(e.Code)
	if err := dw.Err(); err != nil {
		return err
	}
	_, err := e.TLVs.WriteTo(w)
	return err
}

// Subcode returns the family-specific detail code, if present.
func (e *SnacError) Subcode() (uint16, bool) {
	return e.TLVs.FirstUShort(TlvErrorSubcode)
}

// Error implements error so an error reply can be returned directly.
func (e *SnacError) Error() string {
	return fmt.Sprintf("snac error in %s: %s", FamilyName(e.Fam), ErrorName(e.Code))
}

// RegisterErrors adds the any-family error decoder.
func RegisterErrors(b *snac.TableBuilder) {
	b.RegisterAnyFamily(SubtypeError, DecodeSnacError)
}
