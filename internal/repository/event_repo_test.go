package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"hydroponics_controller/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var eventColumns = []string{"id", "occurred_at", "type", "device", "message", "meta"}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO device_events (id, occurred_at, type, device, message, meta)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "DEVICE_ON", "pump-1", "Pump 1 on", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.DeviceEvent{
		Type:        " device_on ",
		Device:      "pump-1",
		Description: "Pump 1 on",
		Metadata:    map[string]any{"mode": "auto"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_StoresFixedWidthUTC(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	at := time.Date(2025, 3, 1, 12, 0, 5, 0, time.FixedZone("CET", 3600))
	mock.ExpectExec("INSERT INTO device_events").
		WithArgs("e1", "2025-03-01 11:00:05.000", "ALARM_RAISED", "", "timeout", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.DeviceEvent{
		EventID: "e1", OccurredAt: at, Type: "ALARM_RAISED", Description: "timeout",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec("INSERT INTO device_events").WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.DeviceEvent{Type: "DEVICE_OFF", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	js, _ := json.Marshal(map[string]any{"a": "b"})
	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", "2025-01-01 10:00:00.000", "DEVICE_ON", "lights-1", "m1", string(js)).
		AddRow("2", "2025-01-01 11:00:00.000", "ALARM_RAISED", "", "m2", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, occurred_at, type, device, message, meta FROM device_events ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "1" || got[1].EventID != "2" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC); !got[0].OccurredAt.Equal(want) {
		t.Fatalf("occurred_at = %v, want %v", got[0].OccurredAt, want)
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b1, js)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, occurred_at, type, device, message, meta FROM device_events WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? AND device = ? ORDER BY occurred_at ASC`
	rows := sqlmock.NewRows(eventColumns).
		AddRow("2", "2025-01-01 11:00:00.000", "DEVICE_ON", "pump-2", "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00.000", "2025-01-01 12:00:00.000", "DEVICE_ON", "pump-2").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), from, to, " device_on ", "pump-2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Device != "pump-2" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_BadTimestamp(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	rows := sqlmock.NewRows(eventColumns).AddRow("x", "yesterday", "DEVICE_ON", "", "msg", nil)
	mock.ExpectQuery("SELECT id, occurred_at").WillReturnRows(rows)

	if _, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", ""); err == nil {
		t.Fatalf("expected timestamp error, got nil")
	}
}

func TestParseTS_AcceptsRFC3339(t *testing.T) {
	got, err := parseTS("2025-01-01T10:00:00.5+01:00")
	if err != nil {
		t.Fatalf("parseTS: %v", err)
	}
	if want := time.Date(2025, 1, 1, 9, 0, 0, 500_000_000, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
