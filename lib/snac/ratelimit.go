package snac

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"golang.org/x/time/rate"
)

// RateParams are the server's parameters for one rate class. Levels are
// moving averages of the milliseconds between sends over WindowSize sends.
type RateParams struct {
	ClassID    uint16
	WindowSize uint32
	ClearLevel uint32
	MaxLevel   uint32
}

// NewLimiter returns a token bucket approximating the server's moving
// average: one send per ClearLevel milliseconds sustained, with a burst of
// however many back-to-back sends take the average from MaxLevel down to
// ClearLevel.
func NewLimiter(p RateParams) *rate.Limiter {
	if p.ClearLevel == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	every := time.Duration(p.ClearLevel) * time.Millisecond
	return rate.NewLimiter(rate.Every(every), burstFor(p))
}

func burstFor(p RateParams) int {
	if p.WindowSize <= 1 || p.MaxLevel <= p.ClearLevel {
		return 1
	}
	w := float64(p.WindowSize)
	// Each instantaneous send scales the average by (w-1)/w.
	n := math.Log(float64(p.ClearLevel)/float64(p.MaxLevel)) / math.Log((w-1)/w)
	if n < 1 {
		return 1
	}
	return int(n)
}

// RateLimiter paces outgoing commands per server rate class.
type RateLimiter struct {
	mu       sync.Mutex
	classes  map[uint16]*rate.Limiter
	members  map[Key]uint16
	fallback uint16
}

// NewRateLimiter returns a limiter with no classes; it never delays.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		classes: make(map[uint16]*rate.Limiter),
		members: make(map[Key]uint16),
	}
}

// Configure replaces the classes and the command to class mapping. Commands
// missing from members fall under the lowest class ID, as servers treat the
// first class as the default.
func (l *RateLimiter) Configure(params []RateParams, members map[Key]uint16) {
	classes := make(map[uint16]*rate.Limiter, len(params))
	var fallback uint16
	for _, p := range params {
		classes[p.ClassID] = NewLimiter(p)
		if fallback == 0 || p.ClassID < fallback {
			fallback = p.ClassID
		}
	}
	m := make(map[Key]uint16, len(members))
	for k, v := range members {
		m[k] = v
	}

	l.mu.Lock()
	l.classes = classes
	l.members = m
	l.fallback = fallback
	l.mu.Unlock()

	log.WithFields(logger.Fields{
		"at":      "snac.RateLimiter.Configure",
		"classes": len(classes),
		"members": len(m),
	}).Debug("rate_classes_configured")
}

func (l *RateLimiter) limiterFor(family, subtype uint16) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.members[Key{Family: family, Subtype: subtype}]
	if !ok {
		id = l.fallback
	}
	return l.classes[id]
}

// Wait blocks until a command of (family, subtype) may be sent or ctx ends.
func (l *RateLimiter) Wait(ctx context.Context, family, subtype uint16) error {
	lim := l.limiterFor(family, subtype)
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// Allow reports whether a command may be sent now, consuming a token if so.
func (l *RateLimiter) Allow(family, subtype uint16) bool {
	lim := l.limiterFor(family, subtype)
	if lim == nil {
		return true
	}
	return lim.Allow()
}

// ClassOf returns the rate class of (family, subtype).
func (l *RateLimiter) ClassOf(family, subtype uint16) (uint16, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.members[Key{Family: family, Subtype: subtype}]
	if !ok && l.fallback != 0 {
		return l.fallback, true
	}
	return id, ok
}
