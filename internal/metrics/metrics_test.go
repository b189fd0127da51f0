package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"brewble/internal/model"
)

func TestStoreKeepsLatestPerDevice(t *testing.T) {
	s := NewStore(10)
	s.Update(model.Reading{DeviceKey: "red", Gravity: model.Float(1.05)})
	s.Update(model.Reading{DeviceKey: "red", Gravity: model.Float(1.04)})
	s.Update(model.Reading{DeviceKey: "a2b3c"})

	st, ok := s.Get("red")
	if !ok {
		t.Fatalf("expected device red")
	}
	if *st.Reading.Gravity != 1.04 || st.Readings != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
	all := s.GetAll()
	if len(all) != 2 || all[0].Reading.DeviceKey != "a2b3c" {
		t.Fatalf("unexpected list: %+v", all)
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	s.Update(model.Reading{DeviceKey: "a"})
	time.Sleep(2 * time.Millisecond)
	s.Update(model.Reading{DeviceKey: "b"})
	time.Sleep(2 * time.Millisecond)
	s.Update(model.Reading{DeviceKey: "c"})

	if s.Len() != 2 {
		t.Fatalf("expected 2 devices, got %d", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("expected oldest device to be evicted")
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestStoreIgnoresEmptyKey(t *testing.T) {
	s := NewStore(2)
	s.Update(model.Reading{})
	if s.Len() != 0 {
		t.Fatalf("empty key must be ignored")
	}
}

func TestCollectors(t *testing.T) {
	c := NewCollectors()
	c.Decoded(model.FormatTilt)
	c.Decoded(model.FormatTilt)
	c.Dispatched(model.KindGravity, model.DispatchRecord{Status: model.DispatchSent, Duration: time.Millisecond})
	c.Suppressed(model.KindGravity)
	c.CacheError()
	c.QueueDropped()
	c.Advertisement("")

	if got := testutil.ToFloat64(c.decoded.WithLabelValues("tilt")); got != 2 {
		t.Fatalf("decoded = %v", got)
	}
	if got := testutil.ToFloat64(c.dispatches.WithLabelValues("gravity", "sent")); got != 1 {
		t.Fatalf("dispatches = %v", got)
	}
	if got := testutil.ToFloat64(c.adverts.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("adverts = %v", got)
	}
	if got := testutil.ToFloat64(c.dropped); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.Decoded(model.FormatTilt)
	c.CacheError()
	if c.Registry() != nil {
		t.Fatalf("nil collectors have no registry")
	}
}
