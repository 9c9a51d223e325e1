package host

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/stokvel/types"
)

// callerLimiter applies a token bucket per caller and periodically evicts
// idle entries.
type callerLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	byCaller map[types.Address]*limiterEntry
	hits     uint64
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newCallerLimiter returns nil if rps or burst is not positive. A nil
// limiter allows everything.
func newCallerLimiter(rps float64, burst int, idleTTL time.Duration) *callerLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &callerLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		byCaller: make(map[types.Address]*limiterEntry),
		idleTTL:  idleTTL,
	}
}

// Allow reports whether caller may submit one more operation at now.
func (l *callerLimiter) Allow(caller types.Address, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byCaller[caller]
	if !ok {
		e = &limiterEntry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byCaller[caller] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byCaller {
			if v.lastSeen.Before(cutoff) {
				delete(l.byCaller, k)
			}
		}
	}

	return allowed
}

func (l *callerLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byCaller)
}
