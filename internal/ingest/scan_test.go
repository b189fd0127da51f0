package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brewble/internal/config"
	"brewble/internal/model"
)

type fakeRadio struct {
	mu        sync.Mutex
	enableErr error
	scans     int
	stop      chan struct{}
	adverts   []model.Advertisement
}

func newFakeRadio(adverts ...model.Advertisement) *fakeRadio {
	return &fakeRadio{adverts: adverts}
}

func (f *fakeRadio) Enable() error { return f.enableErr }

func (f *fakeRadio) Scan(cb func(model.Advertisement)) error {
	f.mu.Lock()
	f.scans++
	stop := make(chan struct{})
	f.stop = stop
	f.mu.Unlock()
	for _, adv := range f.adverts {
		cb(adv)
	}
	<-stop
	return nil
}

func (f *fakeRadio) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop == nil {
		return errors.New("not scanning")
	}
	close(f.stop)
	f.stop = nil
	return nil
}

func (f *fakeRadio) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func TestScanLoopCyclesAndForwards(t *testing.T) {
	radio := newFakeRadio(model.Advertisement{Address: "AA", Source: "ble"})
	out := make(chan model.Advertisement, 16)
	loop := NewScanLoop(radio, config.ScanConfig{Window: 20 * time.Millisecond, Idle: 5 * time.Millisecond}, out, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for radio.scanCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if radio.scanCount() < 2 {
		t.Fatalf("expected repeated scan windows, got %d", radio.scanCount())
	}
	if len(out) < 2 || loop.Seen() < 2 {
		t.Fatalf("expected forwarded advertisements, got %d", len(out))
	}
	if loop.State() != StateStopped {
		t.Fatalf("state after stop: %s", loop.State())
	}
}

func TestScanLoopEnableFailure(t *testing.T) {
	radio := newFakeRadio()
	radio.enableErr = errors.New("no adapter")
	loop := NewScanLoop(radio, config.ScanConfig{Window: time.Second}, make(chan model.Advertisement, 1), nil)

	if err := loop.Run(context.Background()); err == nil {
		t.Fatalf("expected enable error")
	}
}

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	out := make(chan model.Advertisement, 1)
	if !SendNonBlocking(context.Background(), out, model.Advertisement{}, nil) {
		t.Fatalf("first send should succeed")
	}
	if SendNonBlocking(context.Background(), out, model.Advertisement{}, nil) {
		t.Fatalf("second send should drop")
	}
}

func TestMQTTClientID(t *testing.T) {
	if got := mqttClientID("gw-1"); got != "gw-1" {
		t.Fatalf("configured id: %s", got)
	}
	a, b := mqttClientID(""), mqttClientID("")
	if a == b || len(a) != len("brewble-")+8 {
		t.Fatalf("generated ids: %s %s", a, b)
	}
}
