package server

import (
	"sync"
	"time"
)

// rateLimiter throttles one connection's inbound frames. It holds up to
// burst tokens and earns burst tokens back per interval.
type rateLimiter struct {
	mu        sync.Mutex
	burst     float64
	perSecond float64
	available float64
	last      time.Time
	now       func() time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rl := &rateLimiter{
		burst:     float64(burst),
		perSecond: float64(burst) / interval.Seconds(),
		available: float64(burst),
		now:       time.Now,
	}
	rl.last = rl.now()
	return rl
}

// refill credits the tokens earned since the last call. Caller holds mu.
func (rl *rateLimiter) refill() {
	now := rl.now()
	if earned := now.Sub(rl.last).Seconds() * rl.perSecond; earned > 0 {
		rl.available = min(rl.burst, rl.available+earned)
	}
	rl.last = now
}

// allow spends one token and reports whether there was one to spend.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.available < 1 {
		return false
	}
	rl.available--
	return true
}
