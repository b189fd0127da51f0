package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"brewble/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/brewble?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return newPostgresFromDB(db), nil
}

func newPostgresFromDB(db *sql.DB) *postgresStore {
	return &postgresStore{baseStore{db: db}}
}

const postgresDeviceColumns = `device_key, format, kind, address, name, first_seen, last_seen, last_forward`

func (s *postgresStore) Init(ctx context.Context) error {
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
			first_seen BIGINT NOT NULL,
			last_seen BIGINT NOT NULL,
			last_forward BIGINT NOT NULL DEFAULT 0,
			last_reading JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			id BIGSERIAL PRIMARY KEY,
			ts BIGINT NOT NULL,
			device_key TEXT NOT NULL,
			format TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			error TEXT,
			duration_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_device_ts ON dispatches(device_key, ts)`,
	})
}

func (s *postgresStore) UpsertDevice(ctx context.Context, r model.Reading) error {
	if s.db == nil || r.DeviceKey == "" {
		return nil
	}
	seen := seenAt(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (device_key, format, kind, address, name, first_seen, last_seen, last_forward, last_reading)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		ON CONFLICT (device_key) DO UPDATE SET
			format = EXCLUDED.format,
			kind = EXCLUDED.kind,
			address = EXCLUDED.address,
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE devices.name END,
			last_seen = EXCLUDED.last_seen,
			last_reading = EXCLUDED.last_reading`,
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

func (s *postgresStore) MarkForwarded(ctx context.Context, deviceKey string, ts time.Time) error {
	if s.db == nil || deviceKey == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE devices SET last_forward = $1 WHERE device_key = $2`, ts.Unix(), deviceKey)
	return err
}

func (s *postgresStore) SaveDispatch(ctx context.Context, rec model.DispatchRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (ts, device_key, format, url, status, status_code, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
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

func (s *postgresStore) GetDevice(ctx context.Context, deviceKey string) (model.DeviceInfo, error) {
	return s.getDevice(ctx, `SELECT `+postgresDeviceColumns+` FROM devices WHERE device_key = $1`, deviceKey)
}

func (s *postgresStore) ListDevices(ctx context.Context) ([]model.DeviceInfo, error) {
	return s.queryDevices(ctx, `SELECT `+postgresDeviceColumns+` FROM devices ORDER BY device_key`)
}
