package flap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// PacketEvent is delivered to listeners for every received packet.
type PacketEvent struct {
	Processor *Processor
	Packet    Packet
	// Command is the decoded command, or nil when decoding failed.
	Command Command
}

// VetoResult tells the processor whether to keep delivering a packet.
type VetoResult int

const (
	// Continue passes the packet on to the next listener.
	Continue VetoResult = iota
	// Stop halts delivery of the packet.
	Stop
)

// VetoableListener runs before normal listeners and may stop delivery.
type VetoableListener func(PacketEvent) (VetoResult, error)

// PacketListener observes packets that no vetoable listener stopped.
type PacketListener func(PacketEvent) error

// ListenerHandle identifies a registered listener for removal.
type ListenerHandle uint64

type vetoableEntry struct {
	id ListenerHandle
	fn VetoableListener
}

type packetEntry struct {
	id ListenerHandle
	fn PacketListener
}

// Option configures a Processor.
type Option func(*Processor)

// WithFactory sets the channel command factory.
func WithFactory(f *Factory) Option {
	return func(p *Processor) { p.factory = f }
}

// WithSeqStart sets the first outgoing sequence number.
func WithSeqStart(start uint16) Option {
	return func(p *Processor) { p.seq = NewSeqGen(start) }
}

// WithErrorHandler sets the error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Processor) { p.errHandler = h }
}

// Processor runs the FLAP protocol over one stream.
type Processor struct {
	rw      io.ReadWriter
	factory *Factory
	seq     *SeqGen

	writeMu sync.Mutex

	mu         sync.Mutex
	nextID     ListenerHandle
	vetoable   []vetoableEntry
	listeners  []packetEntry
	errHandler ErrorHandler
}

// NewProcessor returns a processor over rw.
func NewProcessor(rw io.ReadWriter, opts ...Option) *Processor {
	p := &Processor{
		rw:      rw,
		factory: DefaultFactory(),
		seq:     NewSeqGen(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddVetoableListener registers l to run before normal listeners.
func (p *Processor) AddVetoableListener(l VetoableListener) ListenerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.vetoable = append(p.vetoable, vetoableEntry{id: p.nextID, fn: l})
	return p.nextID
}

// AddPacketListener registers l.
func (p *Processor) AddPacketListener(l PacketListener) ListenerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.listeners = append(p.listeners, packetEntry{id: p.nextID, fn: l})
	return p.nextID
}

// RemoveListener unregisters the listener with handle h.
func (p *Processor) RemoveListener(h ListenerHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.vetoable {
		if e.id == h {
			p.vetoable = append(p.vetoable[:i:i], p.vetoable[i+1:]...)
			return
		}
	}
	for i, e := range p.listeners {
		if e.id == h {
			p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
			return
		}
	}
}

// SetErrorHandler replaces the error handler. A nil handler restores logging.
func (p *Processor) SetErrorHandler(h ErrorHandler) {
	p.mu.Lock()
	p.errHandler = h
	p.mu.Unlock()
}

// ReportError delivers ev to the error handler, or logs it when none is set.
// Layers built on the processor use it so all failures reach one handler.
func (p *Processor) ReportError(ev ErrorEvent) {
	p.mu.Lock()
	h := p.errHandler
	p.mu.Unlock()
	if h != nil {
		h(ev)
		return
	}
	fields := logger.Fields{
		"at":         "flap.Processor.ReportError",
		"error_type": ev.Type.String(),
		"error":      ev.Err.Error(),
	}
	if ev.Packet != nil {
		fields["channel"] = ev.Packet.Channel
		fields["seq"] = ev.Packet.Seq
	}
	log.WithFields(fields).Warn("flap_processor_error")
}

// Send encodes cmd and writes it as one frame. An oversized payload is
// reported as ErrorTypeEncode and dropped; the processor stays usable and no
// sequence number is consumed.
func (p *Processor) Send(cmd Command) error {
	var buf bytes.Buffer
	if err := cmd.WriteData(&buf); err != nil {
		err = oops.Wrapf(err, "encode channel %d command", cmd.Channel())
		p.ReportError(ErrorEvent{Type: ErrorTypeEncode, Err: err, Command: cmd})
		return err
	}
	if buf.Len() > MaxDataLen {
		err := oops.Wrapf(ErrPayloadTooLarge, "channel %d command is %d bytes", cmd.Channel(), buf.Len())
		p.ReportError(ErrorEvent{Type: ErrorTypeEncode, Err: err, Command: cmd})
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	seq := p.seq.Next()
	frame, err := EncodeFrame(cmd.Channel(), seq, buf.Bytes())
	if err != nil {
		return err
	}
	if _, err := p.rw.Write(frame); err != nil {
		err = oops.Wrapf(err, "write channel %d frame", cmd.Channel())
		p.ReportError(ErrorEvent{Type: ErrorTypeWrite, Err: err, Command: cmd})
		return err
	}

	log.WithFields(logger.Fields{
		"at":      "flap.Processor.Send",
		"channel": cmd.Channel(),
		"seq":     seq,
		"length":  buf.Len(),
	}).Debug("flap_packet_sent")
	return nil
}

// ReadNext reads one packet from the stream.
func (p *Processor) ReadNext() (Packet, error) {
	return ReadPacket(p.rw)
}

// ReadLoop reads and dispatches packets until the stream ends.
//
// It returns nil on an orderly disconnect: end of stream at a frame boundary,
// a stream closed partway through a frame, or a locally closed socket. A bad
// parity byte returns an error wrapping ErrBadParity. When ctx is cancelled
// and the stream implements io.Closer, the stream is closed to unblock the
// pending read.
func (p *Processor) ReadLoop(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	if c, ok := p.rw.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-stop:
			}
		}()
	}

	for {
		pkt, err := p.ReadNext()
		if err != nil {
			if IsDisconnect(err) {
				log.WithFields(logger.Fields{
					"at":     "flap.Processor.ReadLoop",
					"reason": err.Error(),
				}).Debug("flap_stream_closed")
				return nil
			}
			if !errors.Is(err, ErrBadParity) {
				err = oops.Wrapf(err, "read flap packet")
			}
			p.ReportError(ErrorEvent{Type: ErrorTypeRead, Err: err})
			return err
		}
		p.Process(pkt)
	}
}

// IsDisconnect reports whether a read error means the stream has ended rather
// than failed. A peer that closes its socket with our data still unread
// resets the connection, so resets count as an end too.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// Process decodes pkt and delivers it to the listeners. Listener errors and
// panics are reported to the error handler and do not stop delivery to the
// remaining listeners.
func (p *Processor) Process(pkt Packet) {
	cmd, err := p.factory.Decode(pkt)
	if err != nil {
		p.ReportError(ErrorEvent{Type: ErrorTypeDecode, Err: err, Packet: &pkt})
		cmd = nil
	}
	ev := PacketEvent{Processor: p, Packet: pkt, Command: cmd}

	p.mu.Lock()
	vetoable := append([]vetoableEntry(nil), p.vetoable...)
	listeners := append([]packetEntry(nil), p.listeners...)
	p.mu.Unlock()

	for _, e := range vetoable {
		if p.runVetoable(e.fn, ev) == Stop {
			return
		}
	}
	for _, e := range listeners {
		p.runListener(e.fn, ev)
	}
}

func (p *Processor) runVetoable(fn VetoableListener, ev PacketEvent) (res VetoResult) {
	defer func() {
		if r := recover(); r != nil {
			p.ReportError(ErrorEvent{Type: ErrorTypeListener, Err: fmt.Errorf("vetoable listener panic: %v", r), Packet: &ev.Packet})
			res = Continue
		}
	}()
	res, err := fn(ev)
	if err != nil {
		p.ReportError(ErrorEvent{Type: ErrorTypeListener, Err: err, Packet: &ev.Packet})
	}
	return res
}

func (p *Processor) runListener(fn PacketListener, ev PacketEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.ReportError(ErrorEvent{Type: ErrorTypeListener, Err: fmt.Errorf("listener panic: %v", r), Packet: &ev.Packet})
		}
	}()
	if err := fn(ev); err != nil {
		p.ReportError(ErrorEvent{Type: ErrorTypeListener, Err: err, Packet: &ev.Packet})
	}
}
