package engine

import (
	"sync"
	"time"
)

// compactAbove bounds the ledger; entries older than the interval carry no
// information once it is exceeded.
const compactAbove = 10000

// Ledger remembers when each device was last forwarded.
type Ledger struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewLedger() *Ledger {
	return &Ledger{last: make(map[string]time.Time)}
}

// Allow reports whether key may be forwarded at now and, if so, records now
// as its last forward in the same critical section. An interval <= 0 always
// allows.
func (l *Ledger) Allow(key string, now time.Time, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval > 0 {
		if ts, ok := l.last[key]; ok && now.Sub(ts) < interval {
			return false
		}
	}
	l.last[key] = now
	if len(l.last) > compactAbove {
		l.compact(now, interval)
	}
	return true
}

func (l *Ledger) Last(key string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.last[key]
	return ts, ok
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = make(map[string]time.Time)
}

func (l *Ledger) compact(now time.Time, interval time.Duration) {
	for k, ts := range l.last {
		if now.Sub(ts) >= interval {
			delete(l.last, k)
		}
	}
}
