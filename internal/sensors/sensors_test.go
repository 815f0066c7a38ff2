package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"hydroponics_controller/internal/hardware"
)

type slowUnit struct {
	delay time.Duration
}

func (s slowUnit) Name() string { return "slow" }

func (s slowUnit) ReadClimate(ctx context.Context) (float64, float64, error) {
	time.Sleep(s.delay)
	return 30, 80, nil
}

type staticUnit struct {
	t, h float64
	err  error
}

func (s staticUnit) Name() string { return "static" }

func (s staticUnit) ReadClimate(context.Context) (float64, float64, error) {
	return s.t, s.h, s.err
}

func TestReader_CombinesUnitsAndWater(t *testing.T) {
	water := hardware.NewFakeWaterInputs(hardware.WaterLevels{FloatLow: true, FloatMid: true})
	r := NewReader([]Hygrometer{staticUnit{t: 24, h: 60}, staticUnit{t: 26, h: 70}}, water, time.Second, nil)

	snap := r.Read(context.Background())
	if !snap.WaterSensorsOK || !snap.FloatLow || !snap.FloatMid || snap.FloatHigh {
		t.Fatalf("unexpected water state %+v", snap)
	}
	temp, ok := snap.TemperatureC()
	if !ok || temp != 25 {
		t.Fatalf("temperature=%v ok=%v", temp, ok)
	}
	hum, _ := snap.HumidityPct()
	if hum != 65 {
		t.Fatalf("humidity=%v, want 65", hum)
	}
	if snap.TakenAt.IsZero() {
		t.Fatalf("TakenAt not set")
	}
}

func TestReader_FailedUnitIsAbsent(t *testing.T) {
	water := hardware.NewFakeWaterInputs(hardware.WaterLevels{})
	r := NewReader([]Hygrometer{staticUnit{err: errors.New("checksum")}, staticUnit{t: 21, h: 40}}, water, time.Second, nil)

	snap := r.Read(context.Background())
	if snap.Climate[0].TemperatureC != nil || snap.Climate[0].HumidityPct != nil {
		t.Fatalf("failed unit should be absent: %+v", snap.Climate[0])
	}
	if temp, ok := snap.TemperatureC(); !ok || temp != 21 {
		t.Fatalf("remaining unit should carry the mean: %v %v", temp, ok)
	}
}

func TestReader_SlowUnitTimesOutWithoutBlocking(t *testing.T) {
	water := hardware.NewFakeWaterInputs(hardware.WaterLevels{FloatHigh: true})
	r := NewReader([]Hygrometer{slowUnit{delay: 500 * time.Millisecond}}, water, 50*time.Millisecond, nil)

	start := time.Now()
	snap := r.Read(context.Background())
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("read blocked for %v", elapsed)
	}
	if _, ok := snap.TemperatureC(); ok {
		t.Fatalf("timed-out unit should be absent")
	}
	if !snap.WaterSensorsOK || !snap.FloatHigh {
		t.Fatalf("water inputs should still be read")
	}
}

func TestReader_WaterFailureMarksSensorsDown(t *testing.T) {
	water := hardware.NewFakeWaterInputs(hardware.WaterLevels{FloatHigh: true, Overflow: true})
	water.ReadError = errors.New("gpio gone")
	r := NewReader(nil, water, time.Second, nil)

	snap := r.Read(context.Background())
	if snap.WaterSensorsOK || snap.FloatHigh || snap.Overflow {
		t.Fatalf("failed water read must report dry and not ok: %+v", snap)
	}
}

func TestBounded_ReturnsTimeoutError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := bounded(ctx, func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
}
