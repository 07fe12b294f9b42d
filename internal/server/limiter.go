package server

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AcceptLimiter applies a token bucket per remote host and evicts hosts that
// have been idle for longer than idleTTL.
type AcceptLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byHost map[string]*hostBucket
	hits   uint64
}

type hostBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAcceptLimiter returns nil when rps or burst is not positive; a nil
// limiter allows everything.
func NewAcceptLimiter(rps float64, burst int, idleTTL time.Duration) *AcceptLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &AcceptLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byHost:  make(map[string]*hostBucket),
	}
}

// Allow consumes one token for the host of addr.
func (l *AcceptLimiter) Allow(addr net.Addr, now time.Time) bool {
	if l == nil || addr == nil {
		return true
	}
	host := hostOf(addr.String())
	if host == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byHost[host]
	if !ok {
		b = &hostBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byHost[host] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for h, v := range l.byHost {
			if v.lastSeen.Before(cutoff) {
				delete(l.byHost, h)
			}
		}
	}
	return allowed
}

func (l *AcceptLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byHost)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
