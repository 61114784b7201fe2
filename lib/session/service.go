package session

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/client"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/conn"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/minecraftim/go-oscar/lib/snaccmd/loc"
	"github.com/samber/oops"
)

// DefaultPort is used when a server address has no port.
const DefaultPort = 5190

// serviceConn is a BOS or service connection going through the
// ServerReady, versions, rate info and ClientReady startup.
type serviceConn struct {
	s       *Session
	conn    *client.ClientConn
	limiter *snac.RateLimiter
	primary bool
	// service is the family a redirect opened this connection for.
	service uint16

	mu       sync.Mutex
	families []uint16

	ready     chan struct{}
	readyOnce sync.Once
}

func splitAddr(addr string) (string, int) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, DefaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return host, DefaultPort
	}
	return host, port
}

// newServiceConn prepares a connection to addr. Its close is reported to
// the session from the moment it exists.
func (s *Session) newServiceConn(addr string, primary bool, service uint16) *serviceConn {
	host, port := splitAddr(addr)
	sc := &serviceConn{s: s, primary: primary, service: service, ready: make(chan struct{})}
	if s.cfg.RateLimit {
		sc.limiter = snac.NewRateLimiter()
	}
	sc.conn = client.New(s.connConfig(host, port, sc.limiter))
	sc.conn.AddStateListener(sc.stateChanged)
	return sc
}

// start connects and presents cookie. Startup continues on the
// connection's read loop. A failure also ends the connection, so it is
// reported to the session as a close.
func (sc *serviceConn) start(ctx context.Context, cookie []byte) error {
	if err := sc.conn.Connect(ctx); err != nil {
		return oops.Wrapf(err, "connect to service %s", sc.conn.Addr())
	}
	if err := sc.conn.SendFlap(flap.NewCookieLoginCmd(cookie)); err != nil {
		sc.conn.Disconnect()
		return err
	}
	return nil
}

// isReady reports whether startup finished.
func (sc *serviceConn) isReady() bool {
	select {
	case <-sc.ready:
		return true
	default:
		return false
	}
}

// Families returns the families the server announced.
func (sc *serviceConn) Families() []uint16 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return append([]uint16(nil), sc.families...)
}

func (sc *serviceConn) stateChanged(ev client.StateEvent) {
	switch {
	case ev.New == client.StateConnected:
		ev.Conn.Snac().AddPacketListener(sc.handleSnac)
	case ev.New.Terminal():
		sc.s.serviceClosed(sc, ev.Reason)
	}
}

func (sc *serviceConn) handleSnac(ev snac.PacketEvent) error {
	switch cmd := ev.Command.(type) {
	case *conn.FamilyList:
		if cmd.Sub == conn.SubtypeServerReady {
			return sc.serverReady(cmd.Families)
		}
		log.WithFields(logger.Fields{
			"at":       "session.serviceConn.handleSnac",
			"subtype":  cmd.Sub,
			"families": len(cmd.Families),
		}).Debug("service_paused")
	case *conn.ServiceRedirect:
		sc.s.redirect(cmd, cmd.Service)
	case *conn.RateChange:
		log.WithFields(logger.Fields{
			"at":    "session.serviceConn.handleSnac",
			"code":  cmd.Code,
			"class": cmd.Class.ID,
		}).Debug("rate_change")
	case *conn.Motd:
		msg, _ := cmd.Message()
		log.WithFields(logger.Fields{"at": "session.serviceConn.handleSnac", "motd": msg}).Debug("motd_received")
	default:
		sc.s.dispatch(ev)
	}
	return nil
}

func (sc *serviceConn) serverReady(families []uint16) error {
	sc.mu.Lock()
	sc.families = append([]uint16(nil), families...)
	sc.mu.Unlock()

	sp := sc.conn.Snac()
	if err := sp.Send(conn.NewClientVersions(families...)); err != nil {
		return err
	}
	return sp.SendRequest(snac.NewRequestFunc(conn.NewRateInfoRequest(), sc.rateInfo))
}

func (sc *serviceConn) rateInfo(ev snac.ResponseEvent) {
	info, ok := ev.Command.(*conn.RateInfo)
	if !ok {
		sc.fail(oops.Wrapf(ErrUnexpectedResponse, "rate info request answered with snac %s", ev.Packet.Key()))
		return
	}
	sp := sc.conn.Snac()
	if err := sp.Send(&conn.RateAck{ClassIDs: info.ClassIDs()}); err != nil {
		sc.fail(err)
		return
	}
	if sc.limiter != nil {
		sc.limiter.Configure(info.Limits())
	}

	families := sc.Families()
	var setup []snac.Command
	if sc.primary {
		setup = append(setup, icbm.NewSetParamInfo(nil), loc.NewSetCaps(sc.s.cfg.Caps...))
	}
	setup = append(setup, conn.NewClientReady(families...))
	for _, cmd := range setup {
		if err := sp.Send(cmd); err != nil {
			sc.fail(err)
			return
		}
	}

	log.WithFields(logger.Fields{
		"at":       "session.serviceConn.rateInfo",
		"addr":     sc.conn.Addr(),
		"primary":  sc.primary,
		"families": len(families),
	}).Debug("service_ready")
	sc.s.serviceReady(sc, families)
	sc.readyOnce.Do(func() { close(sc.ready) })
}

func (sc *serviceConn) fail(err error) {
	log.WithFields(logger.Fields{
		"at":    "session.serviceConn.fail",
		"addr":  sc.conn.Addr(),
		"error": err.Error(),
	}).Error("service_startup_failed")
	sc.conn.Disconnect()
}

// routed returns the families the router should send over this connection.
// The conn family exists on every connection and is only routed to the
// primary.
func (sc *serviceConn) routed(families []uint16) []uint16 {
	if sc.primary {
		return families
	}
	out := make([]uint16, 0, len(families))
	for _, f := range families {
		if f != snaccmd.FamilyConn {
			out = append(out, f)
		}
	}
	return out
}
