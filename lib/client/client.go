// Package client manages one OSCAR TCP connection: dialing, the FLAP and
// SNAC processors that run on it, and its lifecycle state.
package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// DefaultCleanInterval is how often expired SNAC requests are swept.
const DefaultCleanInterval = time.Minute

// DialFunc opens the transport connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config configures a ClientConn.
type Config struct {
	Host string
	Port int
	// Table decodes SNAC commands. Nil decodes nothing.
	Table *snac.Table
	// Factory decodes FLAP commands. Nil uses flap.DefaultFactory.
	Factory       *flap.Factory
	RequestTTL    time.Duration
	CleanInterval time.Duration
	RateLimiter   *snac.RateLimiter
	// Dial overrides net.Dialer, for tests and proxies.
	Dial DialFunc
}

// ClientConn is one connection to an OSCAR server.
type ClientConn struct {
	cfg Config

	mu        sync.Mutex
	state     State
	reason    error
	listeners []StateListener
	conn      net.Conn
	fp        *flap.Processor
	sp        *snac.Processor

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New returns an unconnected ClientConn.
func New(cfg Config) *ClientConn {
	if cfg.CleanInterval == 0 {
		cfg.CleanInterval = DefaultCleanInterval
	}
	if cfg.RequestTTL == 0 {
		cfg.RequestTTL = snac.DefaultRequestTTL
	}
	if cfg.Dial == nil {
		var d net.Dialer
		cfg.Dial = d.DialContext
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ClientConn{cfg: cfg, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Addr returns host:port.
func (c *ClientConn) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// AddStateListener registers l for future transitions.
func (c *ClientConn) AddStateListener(l StateListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// State returns the current state.
func (c *ClientConn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns why the connection failed or closed, if known.
func (c *ClientConn) Reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Flap returns the FLAP processor, or nil before CONNECTED.
func (c *ClientConn) Flap() *flap.Processor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fp
}

// Snac returns the SNAC processor, or nil before CONNECTED.
func (c *ClientConn) Snac() *snac.Processor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sp
}

// Done is closed when the connection reaches a terminal state.
func (c *ClientConn) Done() <-chan struct{} {
	return c.done
}

func (c *ClientConn) setState(to State, reason error) error {
	c.mu.Lock()
	from := c.state
	if !CanTransition(from, to) {
		c.mu.Unlock()
		return oops.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	c.state = to
	if reason != nil {
		c.reason = reason
	}
	listeners := append([]StateListener(nil), c.listeners...)
	c.mu.Unlock()

	fields := logger.Fields{"at": "client.ClientConn.setState", "addr": c.Addr(), "from": from.String(), "to": to.String()}
	if to == StateFailed {
		fields["reason"] = errString(reason)
		log.WithFields(fields).Error("connection_failed")
	} else {
		log.WithFields(fields).Debug("connection_state_changed")
	}
	ev := StateEvent{Conn: c, Old: from, New: to, Reason: reason}
	for _, l := range listeners {
		l(ev)
	}
	if to.Terminal() {
		c.closeOnce.Do(func() { close(c.done) })
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Connect dials the server and starts the read loop. Listeners registered
// on the processors before the first packet arrives should be added from a
// StateConnected listener.
func (c *ClientConn) Connect(ctx context.Context) error {
	if err := c.setState(StateConnecting, nil); err != nil {
		return err
	}
	dctx, dcancel := context.WithCancel(ctx)
	defer dcancel()
	stop := context.AfterFunc(c.ctx, dcancel)
	defer stop()

	nc, err := c.cfg.Dial(dctx, "tcp", c.Addr())
	if c.ctx.Err() != nil {
		if nc != nil {
			nc.Close()
		}
		c.setState(StateDisconnected, nil)
		return oops.Wrapf(ErrNotConnected, "disconnected while dialing %s", c.Addr())
	}
	if err != nil {
		err = oops.Wrapf(err, "dial %s", c.Addr())
		c.setState(StateFailed, err)
		return err
	}
	return c.attach(nc)
}

func (c *ClientConn) attach(nc net.Conn) error {
	fopts := []flap.Option{flap.WithErrorHandler(c.handleError)}
	if c.cfg.Factory != nil {
		fopts = append(fopts, flap.WithFactory(c.cfg.Factory))
	}
	fp := flap.NewProcessor(nc, fopts...)
	sopts := []snac.Option{snac.WithRequestTTL(c.cfg.RequestTTL)}
	if c.cfg.RateLimiter != nil {
		sopts = append(sopts, snac.WithRateLimiter(c.cfg.RateLimiter))
	}
	sp := snac.NewProcessor(fp, c.cfg.Table, sopts...)
	fp.AddPacketListener(c.handleClose)

	c.mu.Lock()
	c.conn = nc
	c.fp = fp
	c.sp = sp
	c.mu.Unlock()

	if err := c.setState(StateConnected, nil); err != nil {
		nc.Close()
		return err
	}

	c.wg.Add(2)
	go c.readLoop(fp)
	go c.cleanLoop(sp)
	return nil
}

func (c *ClientConn) handleError(ev flap.ErrorEvent) {
	log.WithFields(logger.Fields{
		"at":         "client.ClientConn.handleError",
		"addr":       c.Addr(),
		"error_type": ev.Type.String(),
		"error":      errString(ev.Err),
	}).Warn("connection_error")
}

// handleClose records the server's close command as the disconnect reason.
func (c *ClientConn) handleClose(ev flap.PacketEvent) error {
	cmd, ok := ev.Command.(*flap.CloseCmd)
	if !ok {
		return nil
	}
	c.mu.Lock()
	c.reason = &CloseError{Code: cmd.Code, URL: cmd.URLString()}
	c.mu.Unlock()
	return nil
}

func (c *ClientConn) readLoop(fp *flap.Processor) {
	defer c.wg.Done()
	err := fp.ReadLoop(c.ctx)
	c.cancel()
	c.mu.Lock()
	nc := c.conn
	c.mu.Unlock()
	nc.Close()
	if err != nil {
		c.setState(StateFailed, err)
		return
	}
	c.setState(StateDisconnected, c.Reason())
}

func (c *ClientConn) cleanLoop(sp *snac.Processor) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.CleanInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := sp.CleanExpired(now); n > 0 {
				log.WithFields(logger.Fields{"at": "client.ClientConn.cleanLoop", "expired": n}).Debug("requests_expired")
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Disconnect closes the socket. The read loop then ends and the state
// becomes DISCONNECTED. Calling it before Connect moves straight to
// DISCONNECTED.
func (c *ClientConn) Disconnect() {
	c.mu.Lock()
	nc := c.conn
	st := c.state
	c.mu.Unlock()
	c.cancel()
	if nc != nil {
		nc.Close()
		return
	}
	if st == StateNotConnected {
		c.setState(StateDisconnected, nil)
	}
}

// Wait blocks until the background loops have exited.
func (c *ClientConn) Wait() {
	<-c.done
	c.wg.Wait()
}

// SendRequest sends a SNAC request on this connection.
func (c *ClientConn) SendRequest(req *snac.Request) error {
	sp := c.Snac()
	if sp == nil || c.State() != StateConnected {
		return oops.Wrapf(ErrNotConnected, "send snac %s to %s", snac.KeyOf(req.Command), c.Addr())
	}
	return sp.SendRequest(req)
}

// SendContext sends a SNAC request after waiting for the rate limiter.
func (c *ClientConn) SendContext(ctx context.Context, req *snac.Request) error {
	sp := c.Snac()
	if sp == nil || c.State() != StateConnected {
		return oops.Wrapf(ErrNotConnected, "send snac %s to %s", snac.KeyOf(req.Command), c.Addr())
	}
	return sp.SendContext(ctx, req)
}

// SendFlap sends a FLAP command such as a login or keepalive.
func (c *ClientConn) SendFlap(cmd flap.Command) error {
	fp := c.Flap()
	if fp == nil || c.State() != StateConnected {
		return oops.Wrapf(ErrNotConnected, "send flap channel %d to %s", cmd.Channel(), c.Addr())
	}
	return fp.Send(cmd)
}

// CloseError is the reason recorded when the server sends a close command.
type CloseError struct {
	Code int
	URL  string
}

func (e *CloseError) Error() string {
	if e.Code == flap.NoCode {
		return "server closed connection"
	}
	return "server closed connection with code " + strconv.Itoa(e.Code)
}

// IsBadParity reports whether err ended a connection because of a framing
// error.
func IsBadParity(err error) bool {
	return errors.Is(err, flap.ErrBadParity)
}
