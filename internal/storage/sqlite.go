package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"brewble/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:brewble.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &sqliteStore{baseStore{db: db}}, nil
}

const sqliteDeviceColumns = `device_key, format, kind, address, name, first_seen, last_seen, last_forward`

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS devices (
			device_key TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			kind TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			last_forward INTEGER NOT NULL DEFAULT 0,
			last_reading TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			device_key TEXT NOT NULL,
			format TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			error TEXT,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_device_ts ON dispatches(device_key, ts)`,
	})
}

func (s *sqliteStore) UpsertDevice(ctx context.Context, r model.Reading) error {
	if s.db == nil || r.DeviceKey == "" {
		return nil
	}
	seen := seenAt(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (device_key, format, kind, address, name, first_seen, last_seen, last_forward, last_reading)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(device_key) DO UPDATE SET
			format = excluded.format,
			kind = excluded.kind,
			address = excluded.address,
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE devices.name END,
			last_seen = excluded.last_seen,
			last_reading = excluded.last_reading`,
		r.DeviceKey,
		string(r.Format),
		string(r.Kind),
		r.Address,
		r.Name,
		seen,
		seen,
		encodeJSON(r),
	)
	return err
}

func (s *sqliteStore) MarkForwarded(ctx context.Context, deviceKey string, ts time.Time) error {
	if s.db == nil || deviceKey == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE devices SET last_forward = ? WHERE device_key = ?`, ts.Unix(), deviceKey)
	return err
}

func (s *sqliteStore) SaveDispatch(ctx context.Context, rec model.DispatchRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (ts, device_key, format, url, status, status_code, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(),
		rec.DeviceKey,
		string(rec.Format),
		rec.URL,
		string(rec.Status),
		rec.StatusCode,
		rec.Error,
		rec.Duration.Milliseconds(),
	)
	return err
}

func (s *sqliteStore) GetDevice(ctx context.Context, deviceKey string) (model.DeviceInfo, error) {
	return s.getDevice(ctx, `SELECT `+sqliteDeviceColumns+` FROM devices WHERE device_key = ?`, deviceKey)
}

func (s *sqliteStore) ListDevices(ctx context.Context) ([]model.DeviceInfo, error) {
	return s.queryDevices(ctx, `SELECT `+sqliteDeviceColumns+` FROM devices ORDER BY device_key`)
}
