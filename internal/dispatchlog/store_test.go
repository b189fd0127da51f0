package dispatchlog

import (
	"testing"
	"time"

	"brewble/internal/model"
)

func rec(key string, ts time.Time, status model.DispatchStatus) model.DispatchRecord {
	return model.DispatchRecord{DeviceKey: key, Timestamp: ts, Status: status}
}

func TestStoreRingBuffer(t *testing.T) {
	s := NewStore(3)
	base := time.Unix(1000, 0)
	for i, key := range []string{"a", "b", "c", "d"} {
		s.Add(rec(key, base.Add(time.Duration(i)*time.Second), model.DispatchSent))
	}
	got := s.List(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].DeviceKey != "b" || got[2].DeviceKey != "d" {
		t.Fatalf("unexpected order: %+v", got)
	}
	last := s.List(1)
	if len(last) != 1 || last[0].DeviceKey != "d" {
		t.Fatalf("expected newest record, got %+v", last)
	}
}

func TestStoreSinceAndCounts(t *testing.T) {
	s := NewStore(10)
	base := time.Unix(1000, 0)
	s.Add(rec("a", base, model.DispatchSent))
	s.Add(rec("b", base.Add(time.Minute), model.DispatchFailed))
	s.Add(rec("c", base.Add(2*time.Minute), model.DispatchSent))

	since := s.Since(base.Add(time.Minute))
	if len(since) != 2 || since[0].DeviceKey != "b" {
		t.Fatalf("unexpected since result: %+v", since)
	}
	counts := s.Counts()
	if counts[model.DispatchSent] != 2 || counts[model.DispatchFailed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	s.Clear()
	if len(s.List(0)) != 0 {
		t.Fatalf("expected empty store after clear")
	}
}
