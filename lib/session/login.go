package session

import (
	"context"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/client"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/auth"
	"github.com/samber/oops"
)

// authenticate runs the MD5 login on the authorization server and returns
// its successful response.
func (s *Session) authenticate(ctx context.Context) (*auth.AuthResponse, error) {
	// Older servers answer with a close command carrying the auth TLVs
	// instead of a SNAC.
	closed := make(chan snac.Command, 1)
	lc := client.New(s.connConfig(s.cfg.LoginHost, s.cfg.LoginPort, nil))
	lc.AddStateListener(func(ev client.StateEvent) {
		if ev.New != client.StateConnected {
			return
		}
		ev.Conn.Flap().AddPacketListener(func(pe flap.PacketEvent) error {
			if cc, ok := pe.Command.(*flap.CloseCmd); ok {
				offer(closed, auth.AuthResponseFromTLVs(cc.TLVs()))
			}
			return nil
		})
	})

	if err := lc.Connect(ctx); err != nil {
		return nil, oops.Wrapf(err, "connect to login server")
	}
	defer lc.Disconnect()

	if err := lc.SendFlap(flap.NewLoginCmd()); err != nil {
		return nil, err
	}

	resp, err := request(ctx, lc, auth.NewKeyRequest(s.cfg.Screenname), closed)
	if err != nil {
		return nil, oops.Wrapf(err, "request auth key")
	}
	key, ok := resp.(*auth.KeyResponse)
	if !ok {
		return nil, authResult(resp)
	}

	resp, err = request(ctx, lc, auth.NewAuthRequest(s.cfg.Screenname, s.cfg.Password, key.Key, s.cfg.Client), closed)
	if err != nil {
		return nil, oops.Wrapf(err, "send auth request")
	}
	ar, ok := resp.(*auth.AuthResponse)
	if !ok {
		return nil, oops.Wrapf(ErrUnexpectedResponse, "auth request answered with snac %s", snac.KeyOf(resp))
	}
	if err := authResult(ar); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"at":         "session.Session.authenticate",
		"screenname": ar.Screenname,
		"bos":        ar.BosServer,
	}).Debug("login_authorized")
	return ar, nil
}

// authResult turns a non-successful auth response into an error.
func authResult(cmd snac.Command) error {
	ar, ok := cmd.(*auth.AuthResponse)
	if !ok {
		return oops.Wrapf(ErrUnexpectedResponse, "snac %s", snac.KeyOf(cmd))
	}
	if ar.Succeeded() {
		return nil
	}
	code := ar.ErrorCode
	if code == 0 {
		code = auth.ErrorOtherError
	}
	return &LoginError{Code: code, URL: ar.ErrorURL}
}

func offer(ch chan snac.Command, cmd snac.Command) {
	select {
	case ch <- cmd:
	default:
	}
}

// request sends cmd and waits for its first response. A command arriving on
// alt, if set, is taken as the response.
func request(ctx context.Context, c *client.ClientConn, cmd snac.Command, alt <-chan snac.Command) (snac.Command, error) {
	responses := make(chan snac.Command, 1)
	req := snac.NewRequestFunc(cmd, func(ev snac.ResponseEvent) {
		if ev.Command == nil {
			log.WithFields(logger.Fields{
				"at":      "session.request",
				"family":  ev.Packet.Family,
				"subtype": ev.Packet.Subtype,
			}).Warn("undecoded_response")
			return
		}
		offer(responses, ev.Command)
	})
	if err := c.SendRequest(req); err != nil {
		return nil, err
	}

	select {
	case resp := <-responses:
		if se, ok := resp.(*snaccmd.SnacError); ok {
			return nil, oops.Wrapf(se, "snac %s", snac.KeyOf(cmd))
		}
		return resp, nil
	case resp := <-alt:
		return resp, nil
	case <-c.Done():
		select {
		case resp := <-alt:
			return resp, nil
		default:
		}
		return nil, oops.Wrapf(ErrConnectionLost, "%s: %v", c.Addr(), c.Reason())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
