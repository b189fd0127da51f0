package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"brewble/internal/config"
	"brewble/internal/model"
)

// Radio is the passive scanning capability of a BLE adapter. Scan blocks,
// invoking cb for every advertisement, until StopScan is called.
type Radio interface {
	Enable() error
	Scan(cb func(model.Advertisement)) error
	StopScan() error
}

type BluetoothRadio struct {
	name    string
	adapter *bluetooth.Adapter
}

func NewBluetoothRadio(name string) *BluetoothRadio {
	if name == "" {
		name = "hci0"
	}
	return &BluetoothRadio{name: name, adapter: bluetooth.NewAdapter(name)}
}

func (b *BluetoothRadio) Enable() error {
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", b.name, err)
	}
	return nil
}

func (b *BluetoothRadio) Scan(cb func(model.Advertisement)) error {
	return b.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		cb(fromScanResult(r, time.Now().UTC()))
	})
}

func (b *BluetoothRadio) StopScan() error {
	return b.adapter.StopScan()
}

// fromScanResult copies the payload out of the adapter's buffers.
func fromScanResult(r bluetooth.ScanResult, seen time.Time) model.Advertisement {
	adv := model.Advertisement{
		Timestamp: seen,
		Address:   strings.ToUpper(r.Address.String()),
		Name:      r.LocalName(),
		RSSI:      int(r.RSSI),
		Source:    "ble",
	}
	if md := r.ManufacturerData(); len(md) > 0 {
		adv.ManufacturerData = make(map[uint16][]byte, len(md))
		for _, el := range md {
			adv.ManufacturerData[el.CompanyID] = append([]byte(nil), el.Data...)
		}
	}
	if sd := r.ServiceData(); len(sd) > 0 {
		adv.ServiceData = make(map[string][]byte, len(sd))
		for _, el := range sd {
			adv.ServiceData[strings.ToLower(el.UUID.String())] = append([]byte(nil), el.Data...)
		}
	}
	return adv
}

type ScanState int32

const (
	StateStopped ScanState = iota
	StateScanning
	StateIdle
)

func (s ScanState) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateIdle:
		return "idle"
	default:
		return "stopped"
	}
}

// ScanLoop alternates between a scan window and a short idle pause. The
// radio callback only enqueues; all processing happens downstream.
type ScanLoop struct {
	radio  Radio
	window time.Duration
	idle   time.Duration
	out    chan<- model.Advertisement
	logger *slog.Logger
	state  atomic.Int32
	seen   atomic.Int64
}

func NewScanLoop(radio Radio, cfg config.ScanConfig, out chan<- model.Advertisement, logger *slog.Logger) *ScanLoop {
	return &ScanLoop{
		radio:  radio,
		window: cfg.Window,
		idle:   cfg.Idle,
		out:    out,
		logger: logger,
	}
}

func (l *ScanLoop) State() ScanState {
	return ScanState(l.state.Load())
}

// Seen is the number of advertisements observed since Run started.
func (l *ScanLoop) Seen() int64 {
	return l.seen.Load()
}

// Run enables the radio and scans until ctx is cancelled. Only an enable
// failure is returned; scan errors are logged and the cycle restarts.
func (l *ScanLoop) Run(ctx context.Context) error {
	if err := l.radio.Enable(); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("ble scanning started", "window", l.window, "idle", l.idle)
	}
	defer l.state.Store(int32(StateStopped))
	for {
		l.state.Store(int32(StateScanning))
		err := l.scanWindow(ctx)
		if ctx.Err() != nil {
			if l.logger != nil {
				l.logger.Info("ble scanning stopped")
			}
			return nil
		}
		if err != nil && l.logger != nil {
			l.logger.Warn("ble scan error", "err", err)
		}
		l.state.Store(int32(StateIdle))
		if !BackoffSleep(ctx, l.idle) {
			return nil
		}
	}
}

func (l *ScanLoop) scanWindow(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		var timeout <-chan time.Time
		if l.window > 0 {
			t := time.NewTimer(l.window)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-timeout:
		case <-ctx.Done():
		case <-done:
			return
		}
		// StopScan fails if Scan has not started yet; retry until it returns.
		for l.radio.StopScan() != nil {
			select {
			case <-done:
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}()
	return l.radio.Scan(func(adv model.Advertisement) {
		l.seen.Add(1)
		SendNonBlocking(ctx, l.out, adv, l.logger)
	})
}
