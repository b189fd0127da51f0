package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"brewble/internal/config"
	"brewble/internal/model"
)

type scriptedRadio struct {
	mu        sync.Mutex
	enableErr error
	adverts   []model.Advertisement
	stop      chan struct{}
}

func (r *scriptedRadio) Enable() error { return r.enableErr }

func (r *scriptedRadio) Scan(cb func(model.Advertisement)) error {
	r.mu.Lock()
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()
	for _, adv := range r.adverts {
		cb(adv)
	}
	<-stop
	return nil
}

func (r *scriptedRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return errors.New("not scanning")
	}
	close(r.stop)
	r.stop = nil
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.Enabled = false
	cfg.Scan.Window = 50 * time.Millisecond
	cfg.Scan.Idle = 10 * time.Millisecond
	return cfg
}

func gravitymonAdvert() model.Advertisement {
	body := make([]byte, 20)
	copy(body, "GRAVMON.")
	binary.BigEndian.PutUint32(body[8:12], 0x0A2B3C)
	binary.BigEndian.PutUint16(body[12:14], 3000)
	binary.BigEndian.PutUint16(body[14:16], 3850)
	binary.BigEndian.PutUint16(body[16:18], 10500)
	binary.BigEndian.PutUint16(body[18:20], 20500)
	frame := append([]byte{0x02, 0x15}, body...)
	frame = append(frame, 0xC5)
	return model.Advertisement{
		Timestamp:        time.Now(),
		Address:          "AA:BB:CC:DD:EE:01",
		RSSI:             -60,
		ManufacturerData: map[uint16][]byte{0x004C: frame},
	}
}

func TestRunWithoutSources(t *testing.T) {
	cfg := baseConfig()
	cfg.Scan.Enabled = false
	err := Run(context.Background(), config.NewStaticManager(cfg), discardLogger(), "test")
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestRunRadioFailureIsFatalWithoutRemoteSources(t *testing.T) {
	cfg := baseConfig()
	radio := &scriptedRadio{enableErr: errors.New("no adapter")}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := Run(ctx, config.NewStaticManager(cfg), discardLogger(), "test", WithRadio(radio)); err == nil {
		t.Fatalf("expected radio enable error")
	}
}

func TestRunForwardsScannedReading(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Dispatch.BaseURL = srv.URL
	radio := &scriptedRadio{adverts: []model.Advertisement{gravitymonAdvert()}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, config.NewStaticManager(cfg), discardLogger(), "test", WithRadio(radio))
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(bodies)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// The same advert repeats every scan window; the ledger lets one through.
	if len(bodies) != 1 {
		t.Fatalf("expected exactly one forward, got %d", len(bodies))
	}
	if bodies[0]["ID"] != "a2b3c" {
		t.Fatalf("unexpected body: %v", bodies[0])
	}
}
