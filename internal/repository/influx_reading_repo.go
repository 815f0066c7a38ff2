package repository

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"hydroponics_controller/internal/models"
)

const readingMeasurement = "grow_readings"

// pointWriter is the part of api.WriteAPIBlocking the mirror needs.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxReadings mirrors history rows into an InfluxDB bucket.
type InfluxReadings struct {
	client   influxdb2.Client
	writeAPI pointWriter
	site     string
}

func NewInfluxReadings(url, token, org, bucket, site string) *InfluxReadings {
	client := influxdb2.NewClient(url, token)
	return &InfluxReadings{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		site:     site,
	}
}

func (r *InfluxReadings) Insert(ctx context.Context, rd models.SensorReading) error {
	tags := map[string]string{"site": r.site}
	fields := map[string]any{
		"water_level_ok": rd.WaterLevelOK,
		"float_low":      rd.FloatLow,
		"float_mid":      rd.FloatMid,
		"float_high":     rd.FloatHigh,
		"overflow":       rd.Overflow,
	}
	if rd.TemperatureC != nil {
		fields["temperature_c"] = *rd.TemperatureC
	}
	if rd.HumidityPct != nil {
		fields["humidity_pct"] = *rd.HumidityPct
	}

	point := influxdb2.NewPoint(readingMeasurement, tags, fields, rd.RecordedAt)
	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (r *InfluxReadings) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// ReadingWriter accepts history rows without serving queries.
type ReadingWriter interface {
	Insert(ctx context.Context, r models.SensorReading) error
}

// MirroredReadings writes to Primary and then to every mirror. Queries are
// served from Primary only. A failed mirror never hides a successful primary
// write from the caller's history, but its error is still returned.
type MirroredReadings struct {
	Primary ReadingRepo
	Mirrors []ReadingWriter
}

var _ ReadingRepo = (*MirroredReadings)(nil)

func (m *MirroredReadings) Insert(ctx context.Context, rd models.SensorReading) error {
	if err := m.Primary.Insert(ctx, rd); err != nil {
		return err
	}
	var errs []error
	for _, w := range m.Mirrors {
		if err := w.Insert(ctx, rd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MirroredReadings) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	return m.Primary.Latest(ctx, limit)
}
