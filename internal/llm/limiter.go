package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces the primary backend budget: at most perMinute calls in
// any trailing minute, spaced at least minInterval apart.
type Limiter struct {
	mu        sync.Mutex
	perMinute int
	stamps    []stamp
	seq       uint64
	pace      *rate.Limiter
	now       func() time.Time
}

type stamp struct {
	id uint64
	at time.Time
}

// Ticket identifies one reserved slot so it can be refunded.
type Ticket uint64

func NewLimiter(perMinute int, minInterval time.Duration) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	pace := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		pace = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Limiter{perMinute: perMinute, pace: pace, now: time.Now}
}

// TryAcquire reserves a slot if the trailing minute has room. It never
// blocks; callers fall back when ok is false.
func (l *Limiter) TryAcquire() (t Ticket, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	if len(l.stamps) >= l.perMinute {
		return 0, false
	}
	l.seq++
	l.stamps = append(l.stamps, stamp{id: l.seq, at: l.now()})
	return Ticket(l.seq), true
}

// Refund releases a reserved slot. Refunding an expired or unknown ticket
// is a no-op.
func (l *Limiter) Refund(t Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.stamps {
		if s.id == uint64(t) {
			l.stamps = append(l.stamps[:i], l.stamps[i+1:]...)
			return
		}
	}
}

// Wait blocks until the minimum spacing since the previous call has passed.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.pace.Wait(ctx)
}

// Count is the number of slots used in the trailing minute.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return len(l.stamps)
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].at.After(cutoff) {
		i++
	}
	l.stamps = l.stamps[i:]
}
