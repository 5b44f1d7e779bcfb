package httpapi

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"binrush.ai/internal/sim/clock"
)

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	perMinute int
	clock     clock.Clock

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newClientLimiter(perMinute int, c clock.Clock) *clientLimiter {
	return &clientLimiter{
		perMinute: perMinute,
		clock:     c,
		buckets:   map[string]*bucket{},
	}
}

func (l *clientLimiter) Allow(remoteAddr string) bool {
	key := clientKey(remoteAddr)
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b := l.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func clientKey(remoteAddr string) string {
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return h
	}
	return remoteAddr
}

func isLoopbackRemote(remoteAddr string) bool {
	host := clientKey(remoteAddr)
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
