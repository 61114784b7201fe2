package session

import (
	"errors"
	"fmt"

	"github.com/minecraftim/go-oscar/lib/snaccmd/auth"
)

var (
	ErrLoginFailed        = errors.New("session: login failed")
	ErrConnectionLost     = errors.New("session: connection lost")
	ErrUnexpectedResponse = errors.New("session: unexpected response")
	ErrNotReady           = errors.New("session: not signed on")
	ErrClosed             = errors.New("session: closed")
)

// LoginError is a login rejected by the authorization server.
type LoginError struct {
	Code uint16
	URL  string
}

func (e *LoginError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("login failed: %s (%s)", auth.ErrorName(e.Code), e.URL)
	}
	return "login failed: " + auth.ErrorName(e.Code)
}

func (e *LoginError) Unwrap() error { return ErrLoginFailed }
