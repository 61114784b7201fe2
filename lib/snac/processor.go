package snac

import (
	"context"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Request IDs with the high bit set are chosen by the server for unsolicited
// packets; client IDs stay below it.
const maxClientReqID = 0x7FFFFFFF

// PacketEvent is delivered to SNAC listeners.
type PacketEvent struct {
	Processor *Processor
	Packet    Packet
	// Command is the decoded command, or nil for unregistered keys and
	// decode failures.
	Command Command
}

// VetoableListener runs before normal listeners and may stop delivery.
type VetoableListener func(PacketEvent) (flap.VetoResult, error)

// PacketListener observes SNAC packets that are not responses to a pending
// request.
type PacketListener func(PacketEvent) error

type vetoableEntry struct {
	id flap.ListenerHandle
	fn VetoableListener
}

type packetEntry struct {
	id flap.ListenerHandle
	fn PacketListener
}

// Option configures a Processor.
type Option func(*Processor)

// WithRequestTTL sets the default request time to live.
func WithRequestTTL(ttl time.Duration) Option {
	return func(p *Processor) { p.defaultTTL = ttl }
}

// WithRateLimiter sets the limiter applied by SendContext.
func WithRateLimiter(l *RateLimiter) Option {
	return func(p *Processor) { p.limiter = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor runs the SNAC layer on top of a FLAP processor.
type Processor struct {
	flap       *flap.Processor
	table      *Table
	defaultTTL time.Duration
	limiter    *RateLimiter
	now        func() time.Time
	flapHandle flap.ListenerHandle

	mu        sync.Mutex
	lastReqID uint32
	requests  map[uint32]*Request
	nextID    flap.ListenerHandle
	vetoable  []vetoableEntry
	listeners []packetEntry
}

// NewProcessor attaches a SNAC processor to fp. Channel 2 packets that form
// a SNAC are consumed and not passed to fp's normal listeners.
func NewProcessor(fp *flap.Processor, table *Table, opts ...Option) *Processor {
	if table == nil {
		table = NewTableBuilder().Build()
	}
	p := &Processor{
		flap:       fp,
		table:      table,
		defaultTTL: DefaultRequestTTL,
		now:        time.Now,
		requests:   make(map[uint32]*Request),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.flapHandle = fp.AddVetoableListener(p.handleFlap)
	return p
}

// Flap returns the underlying FLAP processor.
func (p *Processor) Flap() *flap.Processor {
	return p.flap
}

// Table returns the decoder table.
func (p *Processor) Table() *Table {
	return p.table
}

// Detach stops the processor from receiving FLAP packets.
func (p *Processor) Detach() {
	p.flap.RemoveListener(p.flapHandle)
}

// SetRateLimiter replaces the rate limiter used by SendContext.
func (p *Processor) SetRateLimiter(l *RateLimiter) {
	p.mu.Lock()
	p.limiter = l
	p.mu.Unlock()
}

// RateLimiter returns the current rate limiter, if any.
func (p *Processor) RateLimiter() *RateLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter
}

// AddVetoableListener registers l.
func (p *Processor) AddVetoableListener(l VetoableListener) flap.ListenerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.vetoable = append(p.vetoable, vetoableEntry{id: p.nextID, fn: l})
	return p.nextID
}

// AddPacketListener registers l.
func (p *Processor) AddPacketListener(l PacketListener) flap.ListenerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.listeners = append(p.listeners, packetEntry{id: p.nextID, fn: l})
	return p.nextID
}

// RemoveListener unregisters the listener with handle h.
func (p *Processor) RemoveListener(h flap.ListenerHandle) {
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

func (p *Processor) nextReqID() uint32 {
	if p.lastReqID >= maxClientReqID {
		p.lastReqID = 0
	}
	p.lastReqID++
	return p.lastReqID
}

// Send sends cmd with no response handling.
func (p *Processor) Send(cmd Command) error {
	return p.SendRequest(NewRequest(cmd))
}

// SendRequest assigns req an ID, records it for response correlation when it
// has callbacks, and writes it.
func (p *Processor) SendRequest(req *Request) error {
	p.mu.Lock()
	id := p.nextReqID()
	ttl := req.TTL
	if ttl == 0 {
		ttl = p.defaultTTL
	}
	req.markSent(id, p.now(), ttl)
	if req.wantsResponses() {
		p.requests[id] = req
	}
	p.mu.Unlock()

	if err := p.flap.Send(FlapCommand(req.Command, id)); err != nil {
		p.mu.Lock()
		delete(p.requests, id)
		p.mu.Unlock()
		return oops.Wrapf(err, "send snac %s", KeyOf(req.Command))
	}

	log.WithFields(logger.Fields{
		"at":      "snac.Processor.SendRequest",
		"family":  req.Command.Family(),
		"subtype": req.Command.Subtype(),
		"req_id":  id,
	}).Debug("snac_request_sent")
	return nil
}

// SendContext waits for the rate limiter, if one is set, then sends req.
func (p *Processor) SendContext(ctx context.Context, req *Request) error {
	if l := p.RateLimiter(); l != nil {
		if err := l.Wait(ctx, req.Command.Family(), req.Command.Subtype()); err != nil {
			return oops.Wrapf(err, "rate limit wait for snac %s", KeyOf(req.Command))
		}
	}
	return p.SendRequest(req)
}

// Pending returns the number of requests awaiting responses.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// CleanExpired removes requests whose TTL has passed and calls their
// OnTimeout callbacks. It returns the number removed.
func (p *Processor) CleanExpired(now time.Time) int {
	var expired []*Request
	p.mu.Lock()
	for id, req := range p.requests {
		if req.expired(now) {
			expired = append(expired, req)
			delete(p.requests, id)
		}
	}
	p.mu.Unlock()

	for _, req := range expired {
		log.WithFields(logger.Fields{
			"at":        "snac.Processor.CleanExpired",
			"req_id":    req.ID(),
			"responses": req.ResponseCount(),
		}).Debug("snac_request_expired")
		if req.OnTimeout != nil {
			p.safeCall(func() { req.OnTimeout(req) }, nil)
		}
	}
	return len(expired)
}

func (p *Processor) handleFlap(ev flap.PacketEvent) (flap.VetoResult, error) {
	pkt, ok := FromFlap(ev.Packet)
	if !ok {
		if ev.Packet.Channel == flap.ChannelSnac {
			log.WithFields(logger.Fields{
				"at":     "snac.Processor.handleFlap",
				"length": ev.Packet.Data.Len(),
			}).Debug("short_snac_ignored")
		}
		return flap.Continue, nil
	}
	p.Process(pkt)
	return flap.Stop, nil
}

// Process decodes pkt and delivers it: vetoable listeners first, then the
// matching request's OnResponse, or the normal listeners when no request
// matches.
func (p *Processor) Process(pkt Packet) {
	cmd, err := p.table.Decode(pkt)
	if err != nil {
		p.report(flap.ErrorTypeDecode, err, pkt)
		cmd = nil
	}

	log.WithFields(logger.Fields{
		"at":      "snac.Processor.Process",
		"family":  pkt.Family,
		"subtype": pkt.Subtype,
		"req_id":  pkt.ReqID,
		"typed":   cmd != nil,
	}).Debug("snac_packet_received")

	ev := PacketEvent{Processor: p, Packet: pkt, Command: cmd}

	p.mu.Lock()
	vetoable := append([]vetoableEntry(nil), p.vetoable...)
	listeners := append([]packetEntry(nil), p.listeners...)
	req := p.requests[pkt.ReqID]
	if req != nil && pkt.Flag2&Flag2MoreReplies == 0 {
		delete(p.requests, pkt.ReqID)
	}
	p.mu.Unlock()

	for _, e := range vetoable {
		res := flap.Continue
		p.safeCall(func() {
			var err error
			res, err = e.fn(ev)
			if err != nil {
				p.report(flap.ErrorTypeListener, err, pkt)
			}
		}, &pkt)
		if res == flap.Stop {
			return
		}
	}

	if req != nil {
		req.addResponse()
		if req.OnResponse != nil {
			p.safeCall(func() {
				req.OnResponse(ResponseEvent{Processor: p, Request: req, Packet: pkt, Command: cmd})
			}, &pkt)
		}
		return
	}

	for _, e := range listeners {
		p.safeCall(func() {
			if err := e.fn(ev); err != nil {
				p.report(flap.ErrorTypeListener, err, pkt)
			}
		}, &pkt)
	}
}

func (p *Processor) report(typ flap.ErrorType, err error, pkt Packet) {
	fp := flap.Packet{Channel: flap.ChannelSnac, Data: pkt.Data}
	p.flap.ReportError(flap.ErrorEvent{Type: typ, Err: err, Packet: &fp})
}

func (p *Processor) safeCall(fn func(), pkt *Packet) {
	defer func() {
		if r := recover(); r != nil {
			err := oops.Errorf("snac listener panic: %v", r)
			if pkt != nil {
				p.report(flap.ErrorTypeListener, err, *pkt)
				return
			}
			p.flap.ReportError(flap.ErrorEvent{Type: flap.ErrorTypeListener, Err: err})
		}
	}()
	fn()
}
