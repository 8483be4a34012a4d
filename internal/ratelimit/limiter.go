package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a per-account cooldown between accepted requests.
// State is process-local on purpose: losing it on a restart lets at most one
// request through early, it never authorizes anything.
type Limiter struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func New(cooldown time.Duration) *Limiter {
	return &Limiter{
		last:     make(map[int64]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Check returns how many seconds the account still has to wait, 0 when the
// request may proceed. The wait is rounded up to the next full second so the
// number shown to the user is never already stale.
func (l *Limiter) Check(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.last[userID]
	if !ok {
		return 0
	}
	elapsed := l.now().Sub(last)
	if elapsed >= l.cooldown {
		return 0
	}
	return int((l.cooldown - elapsed).Seconds()) + 1
}

// Record stamps now as the account's last accepted request. It is called at
// the start of paid work rather than on success, so a slow or failed
// generation still consumes the window.
func (l *Limiter) Record(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[userID] = l.now()
}
