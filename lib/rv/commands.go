package rv

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/minecraftim/go-oscar/lib/common/tlv"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
)

// File send modes.
const (
	FileModeSingle uint16 = 0x0001
	FileModeMulti  uint16 = 0x0002
)

// FileInfo is the service data of a file send proposal:
//
//	mode:u16 | file_count:u16 | total_size:u32 | filename | 0x00
type FileInfo struct {
	Multi     bool
	Count     uint16
	TotalSize uint32
	Filename  string
}

func readFileInfo(b data.ByteBlock) (FileInfo, error) {
	r := data.NewReader(b)
	fi := FileInfo{Multi: r.UShort() == FileModeMulti, Count: r.UShort(), TotalSize: r.UInt()}
	if err := r.Err(); err != nil {
		return FileInfo{}, oops.Wrapf(err, "file send service data")
	}
	rest := r.Rest()
	if i := rest.IndexByte(0); i >= 0 {
		rest = rest.Slice(0, i)
	}
	fi.Filename = rest.String()
	return fi, nil
}

func (fi FileInfo) bytes() []byte {
	mode := FileModeSingle
	if fi.Multi {
		mode = FileModeMulti
	}
	var buf bytes.Buffer
	w := data.NewWriter(&buf)
	w.UShort(mode)
	w.UShort(fi.Count)
	w.UInt(fi.TotalSize)
	w.Write([]byte(fi.Filename))
	w.UByte(0)
	return buf.Bytes()
}

// FileSendReq proposes sending files.
type FileSendReq struct {
	RequestInfo
	File *FileInfo
}

func (c *FileSendReq) Capability() uuid.UUID { return snaccmd.CapSendFile }
func (c *FileSendReq) Status() uint16        { return StatusRequest }

func (c *FileSendReq) Chain() (tlv.Chain, error) {
	var svc *tlv.Tlv
	if c.File != nil {
		t := tlv.New(TlvServiceData, c.File.bytes())
		svc = &t
	}
	return c.RequestInfo.chain(svc), nil
}

func decodeFileSendReq(b icbm.RvBlock) (Command, error) {
	c := &FileSendReq{RequestInfo: readRequestInfo(b.TLVs)}
	if t, ok := b.TLVs.First(TlvServiceData); ok {
		fi, err := readFileInfo(t.Data)
		if err != nil {
			return nil, err
		}
		c.File = &fi
	}
	return c, nil
}

// DirectImReq proposes a direct IM connection.
type DirectImReq struct {
	RequestInfo
}

func (c *DirectImReq) Capability() uuid.UUID { return snaccmd.CapDirectIM }
func (c *DirectImReq) Status() uint16        { return StatusRequest }

func (c *DirectImReq) Chain() (tlv.Chain, error) {
	return c.RequestInfo.chain(nil), nil
}

func decodeDirectImReq(b icbm.RvBlock) (Command, error) {
	return &DirectImReq{RequestInfo: readRequestInfo(b.TLVs)}, nil
}

// GetFileService is the service data of a get file proposal. Its fields
// are not interpreted and round-trip unchanged:
//
//	code:u16 | version:u32 | trailer
type GetFileService struct {
	Code    uint16
	Version uint32
	Trailer []byte
}

// GetFileReq proposes browsing the sender's shared files.
type GetFileReq struct {
	RequestInfo
	Service *GetFileService
}

func (c *GetFileReq) Capability() uuid.UUID { return snaccmd.CapGetFile }
func (c *GetFileReq) Status() uint16        { return StatusRequest }

func (c *GetFileReq) Chain() (tlv.Chain, error) {
	var svc *tlv.Tlv
	if c.Service != nil {
		b := append(data.UShortBytes(c.Service.Code), data.UIntBytes(c.Service.Version)...)
		t := tlv.New(TlvServiceData, append(b, c.Service.Trailer...))
		svc = &t
	}
	return c.RequestInfo.chain(svc), nil
}

func decodeGetFileReq(b icbm.RvBlock) (Command, error) {
	c := &GetFileReq{RequestInfo: readRequestInfo(b.TLVs)}
	if t, ok := b.TLVs.First(TlvServiceData); ok {
		r := data.NewReader(t.Data)
		svc := &GetFileService{Code: r.UShort(), Version: r.UInt()}
		if err := r.Err(); err != nil {
			return nil, oops.Wrapf(err, "get file service data")
		}
		svc.Trailer = r.Rest().Bytes()
		c.Service = svc
	}
	return c, nil
}

// Accept accepts a proposal.
type Accept struct {
	Cap uuid.UUID
}

func (c *Accept) Capability() uuid.UUID     { return c.Cap }
func (c *Accept) Status() uint16            { return StatusAccept }
func (c *Accept) Chain() (tlv.Chain, error) { return tlv.Chain{}, nil }

func decodeAccept(b icbm.RvBlock) (Command, error) {
	return &Accept{Cap: b.Capability}, nil
}

// Reject cancels or declines a proposal. Code is written only when HasCode
// is set.
type Reject struct {
	Cap     uuid.UUID
	Code    uint16
	HasCode bool
}

// NewReject returns a rejection with a reason code.
func NewReject(capability uuid.UUID, code uint16) *Reject {
	return &Reject{Cap: capability, Code: code, HasCode: true}
}

func (c *Reject) Capability() uuid.UUID { return c.Cap }
func (c *Reject) Status() uint16        { return StatusCancel }

func (c *Reject) Chain() (tlv.Chain, error) {
	if !c.HasCode {
		return tlv.Chain{}, nil
	}
	return tlv.NewChain(tlv.NewUShort(TlvRejectCode, c.Code)), nil
}

func decodeReject(b icbm.RvBlock) (Command, error) {
	c := &Reject{Cap: b.Capability}
	c.Code, c.HasCode = b.TLVs.FirstUShort(TlvRejectCode)
	return c, nil
}

// Generic is a rendezvous block without a registered decoder.
type Generic struct {
	Cap  uuid.UUID
	Stat uint16
	TLVs tlv.Chain
}

func (c *Generic) Capability() uuid.UUID     { return c.Cap }
func (c *Generic) Status() uint16            { return c.Stat }
func (c *Generic) Chain() (tlv.Chain, error) { return c.TLVs, nil }
