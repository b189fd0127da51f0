package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"brewble/internal/model"
)

func newMockPostgres(t *testing.T) (*postgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return newPostgresFromDB(db), mock
}

func TestPostgresUpsertDevice(t *testing.T) {
	store, mock := newMockPostgres(t)
	r := model.Reading{
		Kind:       model.KindPressure,
		Format:     model.FormatPressuremonIBeacon,
		DeviceKey:  "cb3818",
		Address:    "11:22:33:44:55:66",
		ReceivedAt: time.Unix(1700000000, 0),
	}
	mock.ExpectExec(`INSERT INTO devices .* ON CONFLICT \(device_key\) DO UPDATE`).
		WithArgs("cb3818", "pressuremon-ibeacon", "pressure", "11:22:33:44:55:66", "", int64(1700000000), int64(1700000000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpsertDevice(context.Background(), r); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresListDevices(t *testing.T) {
	store, mock := newMockPostgres(t)
	rows := sqlmock.NewRows([]string{"device_key", "format", "kind", "address", "name", "first_seen", "last_seen", "last_forward"}).
		AddRow("a2b3c", "gravitymon-ibeacon", "gravity", "AA", "", int64(100), int64(200), int64(0)).
		AddRow("red", "tilt", "gravity", "BB", "Tilt", int64(100), int64(300), int64(250))
	mock.ExpectQuery(`SELECT device_key, .* FROM devices ORDER BY device_key`).WillReturnRows(rows)

	list, err := store.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(list))
	}
	if list[1].Format != model.FormatTilt || !list[1].LastForward.Equal(time.Unix(250, 0).UTC()) {
		t.Fatalf("unexpected device: %+v", list[1])
	}
	if !list[0].LastForward.IsZero() {
		t.Fatalf("zero last_forward must map to zero time")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresMarkForwardedAndDispatch(t *testing.T) {
	store, mock := newMockPostgres(t)
	ts := time.Unix(1700000000, 0)
	mock.ExpectExec(`UPDATE devices SET last_forward = \$1 WHERE device_key = \$2`).
		WithArgs(int64(1700000000), "red").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dispatches`).
		WithArgs(int64(1700000000), "red", "tilt", "http://x/api/gravity/public", "sent", 200, "", int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.MarkForwarded(context.Background(), "red", ts); err != nil {
		t.Fatalf("mark: %v", err)
	}
	rec := model.DispatchRecord{
		Timestamp:  ts,
		DeviceKey:  "red",
		Format:     model.FormatTilt,
		URL:        "http://x/api/gravity/public",
		Status:     model.DispatchSent,
		StatusCode: 200,
		Duration:   12 * time.Millisecond,
	}
	if err := store.SaveDispatch(context.Background(), rec); err != nil {
		t.Fatalf("save dispatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
