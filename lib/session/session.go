// Package session signs on to an OSCAR service: the MD5 login on the
// authorization server, the BOS connection and its startup, and the service
// connections opened in response to redirects.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/minecraftim/go-oscar/lib/client"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/minecraftim/go-oscar/lib/router"
	"github.com/minecraftim/go-oscar/lib/rv"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/auth"
	"github.com/minecraftim/go-oscar/lib/snaccmd/buddy"
	"github.com/minecraftim/go-oscar/lib/snaccmd/conn"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/minecraftim/go-oscar/lib/snaccmd/loc"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetGoI2PLogger()

// Config holds what a session needs to sign on.
type Config struct {
	LoginHost  string
	LoginPort  int
	Screenname string
	Password   string
	Client     auth.ClientInfo
	// Caps are advertised on the BOS connection.
	Caps []uuid.UUID

	RequestTTL        time.Duration
	KeepaliveInterval time.Duration
	ConnectTimeout    time.Duration
	RateLimit         bool
	Dial              client.DialFunc
}

// Handlers receive server events. Nil handlers are skipped. They run on a
// connection's read loop and must not block.
type Handlers struct {
	OnIM           func(*icbm.RecvIm)
	OnTyping       func(*icbm.Typing)
	OnBuddyOnline  func(snaccmd.FullUserInfo)
	OnBuddyOffline func(snaccmd.FullUserInfo)
	// OnRendezvous receives decoded channel-2 proposals, accepts and
	// cancels. Unknown capabilities arrive as *rv.Generic.
	OnRendezvous func(sender snaccmd.FullUserInfo, cookie icbm.Cookie, cmd rv.Command)
	// OnDisconnect is called once when the BOS connection ends.
	OnDisconnect func(reason error)
}

// Session is one signed-on screen name.
type Session struct {
	cfg      Config
	handlers Handlers
	table    *snac.Table
	router   *router.Manager

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	bos      *serviceConn
	services []*serviceConn
	reason   error

	closeOnce sync.Once
	done      chan struct{}
}

// New returns a session that has not signed on.
func New(cfg Config, h Handlers) *Session {
	if cfg.Client.Name == "" {
		cfg.Client = auth.DefaultClientInfo
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	s := &Session{
		cfg:      cfg,
		handlers: h,
		table:    NewTable(),
		router:   router.New(nil),
		ctx:      gctx,
		cancel:   cancel,
		group:    group,
		done:     make(chan struct{}),
	}
	s.router.SetServiceHandler(s.serviceAnswered)
	return s
}

func (s *Session) connConfig(host string, port int, limiter *snac.RateLimiter) client.Config {
	return client.Config{
		Host:        host,
		Port:        port,
		Table:       s.table,
		RequestTTL:  s.cfg.RequestTTL,
		RateLimiter: limiter,
		Dial:        s.cfg.Dial,
	}
}

// Router returns the family router used by Send.
func (s *Session) Router() *router.Manager {
	return s.router
}

// Login authorizes, connects to BOS and returns once BOS startup is done.
func (s *Session) Login(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	resp, err := s.authenticate(ctx)
	if err != nil {
		return err
	}

	bos := s.newServiceConn(resp.BosServer, true, 0)
	s.mu.Lock()
	s.bos = bos
	s.mu.Unlock()
	s.router.SetPrimary(bos.conn)
	if err := bos.start(ctx, resp.Cookie); err != nil {
		return oops.Wrapf(err, "connect to bos")
	}

	select {
	case <-bos.ready:
	case <-bos.conn.Done():
		return oops.Wrapf(ErrConnectionLost, "bos startup: %v", bos.conn.Reason())
	case <-ctx.Done():
		bos.conn.Disconnect()
		return ctx.Err()
	}

	if s.cfg.KeepaliveInterval > 0 {
		s.group.Go(s.keepaliveLoop)
	}
	log.WithFields(logger.Fields{
		"at":         "session.Session.Login",
		"screenname": s.cfg.Screenname,
		"bos":        bos.conn.Addr(),
	}).Info("signed_on")
	return nil
}

func (s *Session) keepaliveLoop() error {
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, sc := range s.conns() {
				if err := sc.conn.SendFlap(&flap.KeepaliveCmd{}); err != nil {
					log.WithFields(logger.Fields{
						"at":    "session.Session.keepaliveLoop",
						"addr":  sc.conn.Addr(),
						"error": err.Error(),
					}).Warn("keepalive_failed")
				}
			}
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *Session) conns() []*serviceConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*serviceConn(nil), s.services...)
	if s.bos != nil {
		out = append(out, s.bos)
	}
	return out
}

func (s *Session) serviceReady(sc *serviceConn, families []uint16) {
	if err := s.router.ServiceReady(sc.routed(families), sc.conn); err != nil {
		log.WithFields(logger.Fields{
			"at":    "session.Session.serviceReady",
			"addr":  sc.conn.Addr(),
			"error": err.Error(),
		}).Warn("queued_requests_failed")
	}
}

// serviceAnswered handles the answer to a service request the router sent.
func (s *Session) serviceAnswered(family uint16, ev snac.ResponseEvent) {
	if r, ok := ev.Command.(*conn.ServiceRedirect); ok {
		s.redirect(r, family)
		return
	}
	s.router.ServiceFailed(family, oops.Wrapf(ErrUnexpectedResponse,
		"service request for %s answered with snac %s", snaccmd.FamilyName(family), ev.Packet.Key()))
}

// redirect opens the service connection named by a redirect for family.
// Dialing and startup run off the read loop, bounded by ConnectTimeout.
func (s *Session) redirect(r *conn.ServiceRedirect, family uint16) {
	log.WithFields(logger.Fields{
		"at":     "session.Session.redirect",
		"family": snaccmd.FamilyName(family),
		"server": r.Server,
	}).Debug("service_redirect")
	s.group.Go(func() error {
		sc := s.newServiceConn(r.Server, false, family)
		if !s.addService(sc) {
			s.router.ServiceFailed(family, ErrClosed)
			return nil
		}
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
		defer cancel()
		if err := sc.start(ctx, r.Cookie); err != nil {
			log.WithFields(logger.Fields{
				"at":     "session.Session.redirect",
				"family": snaccmd.FamilyName(family),
				"error":  err.Error(),
			}).Error("service_connect_failed")
			return nil
		}
		select {
		case <-sc.ready:
		case <-sc.conn.Done():
		case <-ctx.Done():
			log.WithFields(logger.Fields{
				"at":     "session.Session.redirect",
				"family": snaccmd.FamilyName(family),
				"addr":   sc.conn.Addr(),
			}).Warn("service_startup_timeout")
			sc.conn.Disconnect()
		}
		return nil
	})
}

// addService records sc unless the session has ended.
func (s *Session) addService(sc *serviceConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.services = append(s.services, sc)
	return true
}

func (s *Session) serviceClosed(sc *serviceConn, reason error) {
	families := s.router.Unbind(sc.conn)
	s.mu.Lock()
	for i, other := range s.services {
		if other == sc {
			s.services = append(s.services[:i:i], s.services[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if !sc.primary {
		log.WithFields(logger.Fields{
			"at":       "session.Session.serviceClosed",
			"addr":     sc.conn.Addr(),
			"families": len(families),
			"ready":    sc.isReady(),
		}).Debug("service_closed")
		if !sc.isReady() {
			if reason == nil {
				reason = ErrConnectionLost
			}
			s.router.ServiceFailed(sc.service, reason)
		}
		return
	}
	s.shutdown(reason)
}

func (s *Session) shutdown(reason error) {
	s.closeOnce.Do(func() {
		// Cancel first so addService cannot record a connection after the
		// snapshot below.
		s.cancel()
		s.mu.Lock()
		s.reason = reason
		services := append([]*serviceConn(nil), s.services...)
		s.mu.Unlock()

		for _, sc := range services {
			sc.conn.Disconnect()
		}
		if h := s.handlers.OnDisconnect; h != nil {
			h(reason)
		}
		close(s.done)
	})
}

// Close disconnects every connection.
func (s *Session) Close() {
	s.mu.Lock()
	bos := s.bos
	s.mu.Unlock()
	if bos != nil {
		bos.conn.Disconnect()
	}
	s.shutdown(nil)
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended: nil after Close, the BOS connection's
// failure or close reason otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Wait blocks until the session has ended and its goroutines have exited.
func (s *Session) Wait() error {
	<-s.done
	err := s.group.Wait()
	for _, sc := range s.conns() {
		sc.conn.Wait()
	}
	return err
}

// Send routes cmd to the connection serving its family, waiting for the
// BOS rate limiter first.
func (s *Session) Send(ctx context.Context, cmd snac.Command) error {
	s.mu.Lock()
	bos := s.bos
	s.mu.Unlock()
	if bos == nil {
		return oops.Wrapf(ErrNotReady, "send snac %s", snac.KeyOf(cmd))
	}
	select {
	case <-bos.ready:
	default:
		return oops.Wrapf(ErrNotReady, "send snac %s", snac.KeyOf(cmd))
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	if bos.limiter != nil {
		if err := bos.limiter.Wait(ctx, cmd.Family(), cmd.Subtype()); err != nil {
			return oops.Wrapf(err, "rate limit wait for snac %s", snac.KeyOf(cmd))
		}
	}
	return s.router.Send(snac.NewRequest(cmd))
}

// SendIM sends an instant message to sn.
func (s *Session) SendIM(ctx context.Context, sn, text string) error {
	cmd, err := icbm.NewSendIm(sn, text)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// SetAway sets the away message; an empty message clears it.
func (s *Session) SetAway(ctx context.Context, msg string) error {
	cmd, err := loc.NewSetAway(msg)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// AddBuddies asks for presence notices about sns.
func (s *Session) AddBuddies(ctx context.Context, sns ...string) error {
	return s.Send(ctx, buddy.NewAdd(sns...))
}

// SendRendezvous sends a channel-2 proposal, accept or cancel to sn.
func (s *Session) SendRendezvous(ctx context.Context, sn string, cookie icbm.Cookie, cmd rv.Command) error {
	msg, err := rv.NewSendRv(sn, cookie, cmd)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

func (s *Session) dispatch(ev snac.PacketEvent) {
	switch cmd := ev.Command.(type) {
	case *icbm.RecvIm:
		if h := s.handlers.OnIM; h != nil {
			h(cmd)
		}
	case *icbm.Typing:
		if h := s.handlers.OnTyping; h != nil {
			h(cmd)
		}
	case *buddy.Status:
		if h := s.handlers.OnBuddyOnline; h != nil {
			h(cmd.User)
		}
	case *buddy.Offline:
		if h := s.handlers.OnBuddyOffline; h != nil {
			h(cmd.User)
		}
	case *icbm.RecvRv:
		h := s.handlers.OnRendezvous
		if h == nil {
			return
		}
		rc, err := rv.Decode(cmd.Rv)
		if err != nil {
			log.WithError(err).WithField("at", "session.Session.dispatch").Warn("bad_rendezvous")
			return
		}
		h(cmd.Sender, cmd.Cookie, rc)
	case *snaccmd.SnacError:
		log.WithFields(logger.Fields{
			"at":    "session.Session.dispatch",
			"error": cmd.Error(),
		}).Warn("snac_error_received")
	default:
		log.WithFields(logger.Fields{
			"at":      "session.Session.dispatch",
			"family":  ev.Packet.Family,
			"subtype": ev.Packet.Subtype,
		}).Debug("unhandled_snac")
	}
}
