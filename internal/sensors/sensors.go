// Package sensors produces one SensorSnapshot per tick. Every physical read
// runs under a deadline; a read that fails or overruns leaves its value
// absent instead of holding up the tick.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hydroponics_controller/internal/hardware"
	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/metrics"
	"hydroponics_controller/internal/models"
)

// ErrReadTimeout is returned when a sensor does not answer before the deadline.
var ErrReadTimeout = errors.New("sensor read timed out")

// DefaultReadTimeout bounds every sensor read.
const DefaultReadTimeout = 1500 * time.Millisecond

// Provider yields the snapshot for a tick. Read never fails: sensors that
// could not be read are reported as absent.
type Provider interface {
	Read(ctx context.Context) models.SensorSnapshot
}

// Hygrometer is one temperature/humidity unit.
type Hygrometer interface {
	Name() string
	ReadClimate(ctx context.Context) (tempC, humidityPct float64, err error)
}

// Reader combines the climate units and the water switches.
type Reader struct {
	units   []Hygrometer
	water   hardware.WaterInputs
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewReader builds a Reader. timeout <= 0 selects DefaultReadTimeout.
func NewReader(units []Hygrometer, water hardware.WaterInputs, timeout time.Duration, log *logger.Logger) *Reader {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &Reader{units: units, water: water, timeout: timeout, now: time.Now, log: log}
}

// Read samples every sensor concurrently under one shared deadline.
func (r *Reader) Read(ctx context.Context) models.SensorSnapshot {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap := models.SensorSnapshot{
		TakenAt: r.now(),
		Climate: make([]models.ClimateReading, len(r.units)),
	}

	var wg sync.WaitGroup
	for i, u := range r.units {
		wg.Add(1)
		go func(i int, u Hygrometer) {
			defer wg.Done()
			snap.Climate[i] = r.readClimate(ctx, u)
		}(i, u)
	}

	var levels hardware.WaterLevels
	var waterErr error
	if r.water != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			levels, waterErr = bounded(ctx, r.water.Read)
		}()
	} else {
		waterErr = errors.New("no water inputs configured")
	}
	wg.Wait()

	if waterErr != nil {
		r.failed("water_levels", waterErr)
		return snap
	}
	snap.FloatLow = levels.FloatLow
	snap.FloatMid = levels.FloatMid
	snap.FloatHigh = levels.FloatHigh
	snap.Overflow = levels.Overflow
	snap.ReservoirLow = levels.ReservoirLow
	snap.WaterSensorsOK = true
	return snap
}

func (r *Reader) readClimate(ctx context.Context, u Hygrometer) models.ClimateReading {
	type result struct{ t, h float64 }
	res, err := bounded(ctx, func() (result, error) {
		t, h, err := u.ReadClimate(ctx)
		return result{t, h}, err
	})
	if err != nil {
		r.failed(u.Name(), err)
		return models.ClimateReading{}
	}
	return models.ClimateReading{TemperatureC: models.Float64(res.t), HumidityPct: models.Float64(res.h)}
}

func (r *Reader) failed(sensor string, err error) {
	metrics.SensorReadFailures.WithLabelValues(sensor).Inc()
	if r.log != nil {
		r.log.Warnw("sensor_read_failed", "sensor", sensor, "err", err)
	}
}

// bounded runs fn in its own goroutine and gives up when ctx expires. A
// driver call stuck in the kernel keeps its goroutine until it returns, but
// the tick moves on.
func bounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type out struct {
		v   T
		err error
	}
	ch := make(chan out, 1)
	go func() {
		v, err := fn()
		ch <- out{v, err}
	}()
	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrReadTimeout, ctx.Err())
	}
}
