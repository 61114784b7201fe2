package snac

import (
	"sync"
	"time"
)

// DefaultRequestTTL is how long a request waits for responses before it is
// expired.
const DefaultRequestTTL = 15 * time.Minute

// ResponseEvent is delivered to a request's OnResponse callback.
type ResponseEvent struct {
	Processor *Processor
	Request   *Request
	Packet    Packet
	// Command is the decoded response, or nil when the table has no decoder.
	Command Command
}

// Request is an outgoing command and the callbacks for its responses.
type Request struct {
	Command Command
	// OnResponse receives every response with this request's ID.
	OnResponse func(ResponseEvent)
	// OnTimeout is called once if the request expires unanswered.
	OnTimeout func(*Request)
	// TTL overrides the processor's default time to live when non-zero.
	TTL time.Duration

	mu        sync.Mutex
	id        uint32
	sentAt    time.Time
	ttl       time.Duration
	responses int
	sent      bool
}

// NewRequest returns a request for cmd with no callbacks.
func NewRequest(cmd Command) *Request {
	return &Request{Command: cmd}
}

// NewRequestFunc returns a request for cmd whose responses go to fn.
func NewRequestFunc(cmd Command, fn func(ResponseEvent)) *Request {
	return &Request{Command: cmd, OnResponse: fn}
}

// ID returns the request ID assigned when the request was sent.
func (r *Request) ID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Sent reports whether the request has been written to a connection.
func (r *Request) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// ResponseCount returns the number of responses received so far.
func (r *Request) ResponseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responses
}

func (r *Request) markSent(id uint32, now time.Time, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	r.sentAt = now
	r.ttl = ttl
	r.sent = true
}

func (r *Request) expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl > 0 && now.Sub(r.sentAt) >= r.ttl
}

func (r *Request) addResponse() {
	r.mu.Lock()
	r.responses++
	r.mu.Unlock()
}

func (r *Request) wantsResponses() bool {
	return r.OnResponse != nil || r.OnTimeout != nil
}
