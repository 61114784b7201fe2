package config

import (
	"time"

	"github.com/minecraftim/go-oscar/lib/snaccmd/auth"
)

// Config is the resolved configuration.
type Config struct {
	Oscar OscarConfig
}

// OscarConfig holds the login and relay settings.
type OscarConfig struct {
	LoginHost  string
	LoginPort  int
	Screenname string
	Password   string
	// SendTo is the screen name relayed lines are sent to.
	SendTo string
	Client ClientConfig

	RequestTTL        time.Duration
	KeepaliveInterval time.Duration
	ConnectTimeout    time.Duration
	// RateLimit applies the server's rate classes to outgoing SNACs.
	RateLimit bool
}

// ClientConfig is the client identity sent at login.
type ClientConfig struct {
	Name         string
	ID           uint16
	Major        uint16
	Minor        uint16
	Point        uint16
	Build        uint16
	Distribution uint32
	Language     string
	Country      string
}

// ClientInfo converts c for the auth request.
func (c ClientConfig) ClientInfo() auth.ClientInfo {
	return auth.ClientInfo{
		Name:         c.Name,
		ID:           c.ID,
		Major:        c.Major,
		Minor:        c.Minor,
		Point:        c.Point,
		Build:        c.Build,
		Distribution: c.Distribution,
		Language:     c.Language,
		Country:      c.Country,
	}
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	ci := auth.DefaultClientInfo
	return Config{Oscar: OscarConfig{
		LoginHost: "login.oscar.aol.com",
		LoginPort: 5190,
		Client: ClientConfig{
			Name:         ci.Name,
			ID:           ci.ID,
			Major:        ci.Major,
			Minor:        ci.Minor,
			Point:        ci.Point,
			Build:        ci.Build,
			Distribution: ci.Distribution,
			Language:     ci.Language,
			Country:      ci.Country,
		},
		RequestTTL:        15 * time.Minute,
		KeepaliveInterval: time.Minute,
		ConnectTimeout:    30 * time.Second,
		RateLimit:         true,
	}}
}
