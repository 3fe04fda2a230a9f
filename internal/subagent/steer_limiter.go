package subagent

import (
	"sync"
	"time"
)

// SteerLimiter rate-limits steer attempts per parent session so a retried
// announce cannot hammer a busy parent run with rapid re-steers.
//
// Grounded on subagentTask.allowSteer /
// subagentSteerMinInterval pattern (SUPPLEMENTED FEATURES item 3).
type SteerLimiter struct {
	minInterval time.Duration

	mu   sync.Mutex
	last map[string]time.Time

	nowFn func() time.Time
}

// DefaultSteerMinInterval matches its default cooldown between
// steer attempts into the same parent session.
const DefaultSteerMinInterval = 3 * time.Second

// NewSteerLimiter builds a limiter with the given minimum interval between
// allowed steers per session key. minInterval<=0 uses the default.
func NewSteerLimiter(minInterval time.Duration) *SteerLimiter {
	if minInterval <= 0 {
		minInterval = DefaultSteerMinInterval
	}
	return &SteerLimiter{minInterval: minInterval, last: make(map[string]time.Time), nowFn: time.Now}
}

// Allow reports whether a steer into sessionKey may proceed now, and if so
// records the attempt.
func (l *SteerLimiter) Allow(sessionKey string) bool {
	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.last[sessionKey]; ok && now.Sub(last) < l.minInterval {
		return false
	}
	l.last[sessionKey] = now
	return true
}
