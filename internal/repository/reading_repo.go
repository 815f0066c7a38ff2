package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hydroponics_controller/internal/models"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	insertReadingSQL = `
		INSERT INTO sensor_readings
			(recorded_at, temperature, humidity, water_level_ok, float_low, float_mid, float_high, overflow)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectLatestReadingsSQL = `
		SELECT recorded_at, temperature, humidity, water_level_ok, float_low, float_mid, float_high, overflow
		FROM sensor_readings ORDER BY recorded_at DESC, id DESC LIMIT ?
	`

	maxReadingsLimit = 1000
)

// Insert appends one history row.
func (r *ReadingSQLite) Insert(ctx context.Context, rd models.SensorReading) error {
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		formatTS(rd.RecordedAt),
		nullFloat(rd.TemperatureC),
		nullFloat(rd.HumidityPct),
		rd.WaterLevelOK,
		rd.FloatLow,
		rd.FloatMid,
		rd.FloatHigh,
		rd.Overflow,
	)
	if err != nil {
		return fmt.Errorf("insert sensor reading: %w", err)
	}
	return nil
}

// Latest returns up to limit rows, newest first.
func (r *ReadingSQLite) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if limit <= 0 || limit > maxReadingsLimit {
		limit = maxReadingsLimit
	}
	rows, err := r.db.QueryContext(ctx, selectLatestReadingsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select sensor readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.SensorReading, 0, limit)
	for rows.Next() {
		var (
			rd       models.SensorReading
			at       string
			temp, rh sql.NullFloat64
		)
		if err := rows.Scan(&at, &temp, &rh, &rd.WaterLevelOK, &rd.FloatLow, &rd.FloatMid, &rd.FloatHigh, &rd.Overflow); err != nil {
			return nil, fmt.Errorf("scan sensor reading: %w", err)
		}
		if rd.RecordedAt, err = parseTS(at); err != nil {
			return nil, err
		}
		if temp.Valid {
			rd.TemperatureC = models.Float64(temp.Float64)
		}
		if rh.Valid {
			rd.HumidityPct = models.Float64(rh.Float64)
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
