package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hydroponics_controller/internal/models"
)

// tsLayout is how timestamps are stored: fixed width, UTC, so that string
// comparison in SQL orders correctly.
const tsLayout = "2006-01-02 15:04:05.000"

type SettingsRepo interface {
	LoadAll(ctx context.Context) (map[string]string, error)
	SaveMany(ctx context.Context, kv map[string]string) error
	SeedDefaults(ctx context.Context, defaults map[string]string) error
}

type FillStateRepo interface {
	Save(ctx context.Context, s models.FillState) error
	Load(ctx context.Context) (models.FillState, bool, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, from, to time.Time, typ, device string) ([]models.DeviceEvent, error)
}

type ReadingRepo interface {
	Insert(ctx context.Context, r models.SensorReading) error
	Latest(ctx context.Context, limit int) ([]models.SensorReading, error)
}

type Repository struct {
	Settings  SettingsRepo
	FillState FillStateRepo
	Events    EventRepo
	Readings  ReadingRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings:  NewSettingsSQLite(db),
		FillState: NewFillStateSQLite(db),
		Events:    NewEventSQLite(db),
		Readings:  NewReadingSQLite(db),
	}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTS accepts the storage layout and RFC3339 (what database/sql produces
// when a driver hands back a time.Time for a text destination).
func parseTS(s string) (time.Time, error) {
	for _, layout := range []string{tsLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid stored timestamp %q", s)
}
