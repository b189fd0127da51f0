// Package status publishes the latest decoded values of every device into the
// shared key/value cache so other services can show live status.
//
// Keys are namespaced ble_<deviceKey>_<field> and always carry an expiry, so a
// device that goes quiet eventually disappears. The cache is best effort: an
// unset store turns every call into a no-op and failures are only logged.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"brewble/internal/model"
)

// AnnounceKey holds the running pipeline version and never expires.
const AnnounceKey = "brewble"

type Field struct {
	Name  string
	Value string
}

type Writer struct {
	store   KVStore
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewWriter(store KVStore, ttl, timeout time.Duration, logger *slog.Logger) *Writer {
	return &Writer{
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (w *Writer) Enabled() bool {
	return w != nil && w.store != nil
}

func Key(deviceKey, field string) string {
	return "ble_" + deviceKey + "_" + field
}

// Write stores every field of r. It stops at the first failure, logs it and
// returns it so the caller can count it; callers must not act on it otherwise.
func (w *Writer) Write(ctx context.Context, r model.Reading) error {
	if !w.Enabled() {
		return nil
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	seen := r.ReceivedAt
	if seen.IsZero() {
		seen = w.now()
	}
	for _, f := range Fields(r, seen) {
		key := Key(r.DeviceKey, f.Name)
		if err := w.store.Set(ctx, key, f.Value, w.ttl); err != nil {
			if w.logger != nil {
				w.logger.Warn("status cache write failed", "key", key, "device_key", r.DeviceKey, "err", err)
			}
			return fmt.Errorf("cache set %s: %w", key, err)
		}
	}
	if w.logger != nil {
		w.logger.Debug("status cache updated", "device_key", r.DeviceKey, "format", r.Format)
	}
	return nil
}

// Announce records the pipeline version under AnnounceKey.
func (w *Writer) Announce(ctx context.Context, version string) error {
	if !w.Enabled() {
		return nil
	}
	if err := w.store.Set(ctx, AnnounceKey, version, 0); err != nil {
		if w.logger != nil {
			w.logger.Warn("status cache unavailable", "err", err)
		}
		return err
	}
	return nil
}

// Lookup reads one field back, mainly for diagnostics.
func (w *Writer) Lookup(ctx context.Context, deviceKey, field string) (string, error) {
	if !w.Enabled() {
		return "", ErrCacheMiss
	}
	return w.store.Get(ctx, Key(deviceKey, field))
}

// Fields lists the cache fields for r in write order.
func Fields(r model.Reading, seen time.Time) []Field {
	out := []Field{
		{"last", strconv.FormatInt(seen.Unix(), 10)},
		{"type", string(r.Format)},
		{"temp", formatFloat(r.Temperature)},
		{"temp_units", r.TempUnits},
		{"rssi", strconv.Itoa(r.RSSI)},
	}
	add := func(name string, v *float64) {
		if v != nil {
			out = append(out, Field{name, formatFloat(*v)})
		}
	}
	add("gravity", r.Gravity)
	add("angle", r.Angle)
	add("battery", r.Battery)
	add("battery_pct", r.BatteryPercent)
	add("pressure", r.Pressure)
	add("pressure1", r.Pressure1)
	add("chamber_temp", r.ChamberTemp)
	add("beer_temp", r.BeerTemp)
	add("velocity", r.Velocity)
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
