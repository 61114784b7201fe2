package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/conn"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

var (
	ErrNoPrimary = errors.New("router: no primary connection")
	// ErrChatFamily is returned for chat requests on a family with no bound
	// connection. Chat service connections are per room and are opened by
	// the session, not by the router.
	ErrChatFamily = errors.New("router: chat requests need a room connection")
	// ErrServiceTimeout is passed to ServiceFailed when a service request
	// expires unanswered.
	ErrServiceTimeout = errors.New("router: service request unanswered")
)

// Sender is a connection that carries SNAC requests.
type Sender interface {
	SendRequest(req *snac.Request) error
}

// FamilyState is a family's routing state.
type FamilyState int

const (
	Unbound FamilyState = iota
	Pending
	Bound
)

func (s FamilyState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Pending:
		return "pending"
	case Bound:
		return "bound"
	}
	return fmt.Sprintf("FamilyState(%d)", int(s))
}

// ServiceHandler receives the primary connection's answer to a service
// request for family, normally a redirect to open. SNAC errors are handled
// by the router and never reach it.
type ServiceHandler func(family uint16, ev snac.ResponseEvent)

// Manager is the family router. All state sits behind one mutex, and
// sends happen while holding it so per-family order is the order of Send
// calls.
type Manager struct {
	mu      sync.Mutex
	primary Sender
	handler ServiceHandler
	bound   map[uint16]Sender
	pending map[uint16][]*snac.Request
	// stalled holds the queues of unbound families whose service request
	// failed. They are sent first once the family is requested again.
	stalled map[uint16][]*snac.Request
}

// New returns a router whose service requests go to primary.
func New(primary Sender) *Manager {
	return &Manager{
		primary: primary,
		bound:   make(map[uint16]Sender),
		pending: make(map[uint16][]*snac.Request),
		stalled: make(map[uint16][]*snac.Request),
	}
}

// SetPrimary replaces the primary connection.
func (m *Manager) SetPrimary(s Sender) {
	m.mu.Lock()
	m.primary = s
	m.mu.Unlock()
}

// SetServiceHandler sets the receiver of service request answers.
func (m *Manager) SetServiceHandler(h ServiceHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// State returns family's routing state.
func (m *Manager) State(family uint16) FamilyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(family)
}

func (m *Manager) stateLocked(family uint16) FamilyState {
	if _, ok := m.bound[family]; ok {
		return Bound
	}
	if _, ok := m.pending[family]; ok {
		return Pending
	}
	return Unbound
}

// Queued returns the number of requests waiting on family, including
// those held after a failed service request.
func (m *Manager) Queued(family uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[family]) + len(m.stalled[family])
}

// Send delivers req to the connection bound to its family. For a pending
// family the request is queued. For an unbound family it is queued and a
// service request is sent on the primary connection.
func (m *Manager) Send(req *snac.Request) error {
	family := req.Command.Family()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.stateLocked(family) {
	case Bound:
		return m.bound[family].SendRequest(req)
	case Pending:
		m.pending[family] = append(m.pending[family], req)
		log.WithFields(logger.Fields{
			"at":     "router.Manager.Send",
			"family": snaccmd.FamilyName(family),
			"queued": len(m.pending[family]),
		}).Debug("request_queued")
		return nil
	}

	if family == snaccmd.FamilyChat {
		return oops.Wrapf(ErrChatFamily, "send snac %s", snac.KeyOf(req.Command))
	}
	return m.requestLocked(family, req)
}

// requestLocked marks family pending with its stalled queue plus req, if
// any, and sends a service request on the primary connection. On failure
// the stalled queue is kept; req is not, since the caller gets the error.
func (m *Manager) requestLocked(family uint16, req *snac.Request) error {
	stalled := m.stalled[family]
	queue := append([]*snac.Request(nil), stalled...)
	if req != nil {
		queue = append(queue, req)
	}
	if m.primary == nil {
		return oops.Wrapf(ErrNoPrimary, "request service for %s", snaccmd.FamilyName(family))
	}
	delete(m.stalled, family)
	m.pending[family] = queue
	if err := m.primary.SendRequest(m.serviceRequest(family)); err != nil {
		delete(m.pending, family)
		if len(stalled) > 0 {
			m.stalled[family] = stalled
		}
		return oops.Wrapf(err, "request service for %s", snaccmd.FamilyName(family))
	}
	log.WithFields(logger.Fields{
		"at":     "router.Manager.requestLocked",
		"family": snaccmd.FamilyName(family),
		"queued": len(queue),
	}).Debug("service_requested")
	return nil
}

func (m *Manager) serviceRequest(family uint16) *snac.Request {
	req := snac.NewRequestFunc(conn.NewServiceRequest(family), func(ev snac.ResponseEvent) {
		if se, ok := ev.Command.(*snaccmd.SnacError); ok {
			m.ServiceFailed(family, se)
			return
		}
		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()
		if h != nil {
			h(family, ev)
		}
	})
	req.OnTimeout = func(*snac.Request) {
		m.ServiceFailed(family, ErrServiceTimeout)
	}
	return req
}

// ServiceFailed returns a pending family to unbound after its service
// request failed or its service connection never became ready. The queued
// requests are kept and go out, still first, once the family is requested
// again by Send or Retry. It does nothing for a family that is not pending.
func (m *Manager) ServiceFailed(family uint16, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue, ok := m.pending[family]
	if !ok {
		return
	}
	delete(m.pending, family)
	if len(queue) > 0 {
		m.stalled[family] = queue
	}
	log.WithFields(logger.Fields{
		"at":     "router.Manager.ServiceFailed",
		"family": snaccmd.FamilyName(family),
		"queued": len(m.stalled[family]),
		"error":  errString(err),
	}).Warn("service_request_failed")
}

// Retry requests service again for an unbound family holding requests from
// a failed service request.
func (m *Manager) Retry(family uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateLocked(family) != Unbound || len(m.stalled[family]) == 0 {
		return nil
	}
	return m.requestLocked(family, nil)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ServiceReady binds families to s and flushes their queues in FIFO order.
// Send errors are joined; a failed request is not retried.
func (m *Manager) ServiceReady(families []uint16, s Sender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, family := range families {
		m.bound[family] = s
		queue := append(m.stalled[family], m.pending[family]...)
		delete(m.stalled, family)
		delete(m.pending, family)
		for _, req := range queue {
			if err := s.SendRequest(req); err != nil {
				errs = append(errs, oops.Wrapf(err, "flush snac %s", snac.KeyOf(req.Command)))
			}
		}
		if len(queue) > 0 {
			log.WithFields(logger.Fields{
				"at":      "router.Manager.ServiceReady",
				"family":  snaccmd.FamilyName(family),
				"flushed": len(queue),
			}).Debug("pending_requests_flushed")
		}
	}
	return errors.Join(errs...)
}

// Unbind removes every family bound to s and returns them. If s is the
// primary connection it stops being the primary.
func (m *Manager) Unbind(s Sender) []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var families []uint16
	for family, bs := range m.bound {
		if bs == s {
			delete(m.bound, family)
			families = append(families, family)
		}
	}
	if m.primary == s {
		m.primary = nil
	}
	log.WithFields(logger.Fields{
		"at":       "router.Manager.Unbind",
		"families": len(families),
	}).Debug("connection_unbound")
	return families
}
