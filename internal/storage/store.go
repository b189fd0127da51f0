// Package storage persists the device registry and the forward history in
// sqlite or postgres. It is not a time series of readings: only the latest
// reading of each device is kept, as JSON.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"brewble/internal/config"
	"brewble/internal/model"
)

var ErrNotFound = errors.New("device not found")

type Store interface {
	Init(ctx context.Context) error
	Close() error
	UpsertDevice(ctx context.Context, r model.Reading) error
	MarkForwarded(ctx context.Context, deviceKey string, ts time.Time) error
	SaveDispatch(ctx context.Context, rec model.DispatchRecord) error
	GetDevice(ctx context.Context, deviceKey string) (model.DeviceInfo, error)
	ListDevices(ctx context.Context) ([]model.DeviceInfo, error)
}

// NewStore opens the configured backend. It returns nil, nil when storage is
// disabled.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) exec(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) queryDevices(ctx context.Context, query string, args ...any) ([]model.DeviceInfo, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DeviceInfo, 0)
	for rows.Next() {
		var (
			d                           model.DeviceInfo
			format, kind                string
			firstSeen, lastSeen, lastFw int64
		)
		if err := rows.Scan(&d.DeviceKey, &format, &kind, &d.Address, &d.Name, &firstSeen, &lastSeen, &lastFw); err != nil {
			return nil, err
		}
		d.Format = model.Format(format)
		d.Kind = model.Kind(kind)
		d.FirstSeen = fromUnix(firstSeen)
		d.LastSeen = fromUnix(lastSeen)
		d.LastForward = fromUnix(lastFw)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (b *baseStore) getDevice(ctx context.Context, query, deviceKey string) (model.DeviceInfo, error) {
	list, err := b.queryDevices(ctx, query, deviceKey)
	if err != nil {
		return model.DeviceInfo{}, err
	}
	if len(list) == 0 {
		return model.DeviceInfo{}, ErrNotFound
	}
	return list[0], nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func seenAt(r model.Reading) int64 {
	if r.ReceivedAt.IsZero() {
		return nowUTC().Unix()
	}
	return r.ReceivedAt.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
