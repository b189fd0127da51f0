package engine

import (
	"sync"
	"testing"
	"time"
)

func TestLedgerAllow(t *testing.T) {
	l := NewLedger()
	base := time.Unix(1000, 0)

	if !l.Allow("red", base, 300*time.Second) {
		t.Fatalf("first forward must be allowed")
	}
	if l.Allow("red", base.Add(299*time.Second), 300*time.Second) {
		t.Fatalf("forward inside interval must be suppressed")
	}
	if !l.Allow("red", base.Add(300*time.Second), 300*time.Second) {
		t.Fatalf("forward at interval must be allowed")
	}
	if !l.Allow("blue", base, 300*time.Second) {
		t.Fatalf("devices are independent")
	}
	if last, _ := l.Last("red"); !last.Equal(base.Add(300 * time.Second)) {
		t.Fatalf("unexpected last forward %v", last)
	}
}

func TestLedgerSuppressedDoesNotRecord(t *testing.T) {
	l := NewLedger()
	base := time.Unix(1000, 0)
	l.Allow("red", base, time.Minute)
	l.Allow("red", base.Add(30*time.Second), time.Minute)
	if last, _ := l.Last("red"); !last.Equal(base) {
		t.Fatalf("suppressed attempt must not move the ledger")
	}
}

func TestLedgerConcurrentAllowOnce(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("a2b3c", now, time.Minute) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 1 {
		t.Fatalf("expected exactly one allowed forward, got %d", allowed)
	}
}

func TestLedgerReset(t *testing.T) {
	l := NewLedger()
	l.Allow("red", time.Now(), time.Minute)
	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger")
	}
}
