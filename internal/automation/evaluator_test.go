package automation

import (
	"testing"
	"time"

	"hydroponics_controller/internal/models"
)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func TestLightsOn_Windows(t *testing.T) {
	day := struct{ on, off models.TimeOfDay }{6 * 60, 22 * 60}
	night := struct{ on, off models.TimeOfDay }{22 * 60, 6 * 60}

	cases := []struct {
		name    string
		on, off models.TimeOfDay
		now     time.Time
		want    bool
	}{
		{"day_before_start", day.on, day.off, at(5, 59), false},
		{"day_at_start", day.on, day.off, at(6, 0), true},
		{"day_midday", day.on, day.off, at(13, 0), true},
		{"day_at_end_is_off", day.on, day.off, at(22, 0), false},
		{"wrap_late_evening", night.on, night.off, at(23, 30), true},
		{"wrap_early_morning", night.on, night.off, at(2, 0), true},
		{"wrap_at_end_is_off", night.on, night.off, at(6, 0), false},
		{"wrap_midday_off", night.on, night.off, at(12, 0), false},
		{"empty_window", 8 * 60, 8 * 60, at(8, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LightsOn(tc.on, tc.off, tc.now); got != tc.want {
				t.Fatalf("LightsOn(%s,%s,%s)=%v, want %v", tc.on, tc.off, tc.now.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestInPhase_PumpCycle(t *testing.T) {
	on, off := 15*time.Minute, 45*time.Minute
	epochHour := time.Unix(0, 0).UTC().Add(1000 * time.Hour)

	if !InPhase(epochHour, on, off) {
		t.Fatalf("cycle start should be on")
	}
	if !InPhase(epochHour.Add(14*time.Minute+59*time.Second), on, off) {
		t.Fatalf("end of on window should be on")
	}
	if InPhase(epochHour.Add(15*time.Minute), on, off) {
		t.Fatalf("off window should be off")
	}
	if InPhase(epochHour.Add(59*time.Minute), on, off) {
		t.Fatalf("late off window should be off")
	}
	if !InPhase(epochHour.Add(60*time.Minute), on, off) {
		t.Fatalf("next cycle should be on")
	}
}

func TestInPhase_DegenerateDurations(t *testing.T) {
	now := at(10, 0)
	if InPhase(now, 0, time.Minute) {
		t.Fatalf("zero on-duration must never be on")
	}
	if !InPhase(now, time.Minute, 0) {
		t.Fatalf("zero off-duration means always on")
	}
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	cfg := models.DefaultAutomationConfig()
	snap := models.SensorSnapshot{}
	now := time.Unix(1_700_000_123, 0)
	for _, id := range models.AutomatedDevices() {
		a, errA := Evaluate(id, models.ModeAuto, snap, cfg, now)
		b, errB := Evaluate(id, models.ModeAuto, snap, cfg, now)
		if errA != nil || errB != nil {
			t.Fatalf("%s: unexpected errors %v %v", id, errA, errB)
		}
		if a != b {
			t.Fatalf("%s: evaluations disagree", id)
		}
	}
}

func TestEvaluate_OverridesBeatAuto(t *testing.T) {
	cfg := models.DefaultAutomationConfig()
	hot := models.SensorSnapshot{Climate: []models.ClimateReading{{TemperatureC: models.Float64(40), HumidityPct: models.Float64(95)}}}
	for _, id := range models.AutomatedDevices() {
		for _, now := range []time.Time{at(3, 0), at(12, 0), at(23, 59)} {
			on, err := Evaluate(id, models.ModeOn, models.SensorSnapshot{}, cfg, now)
			if err != nil || !on {
				t.Fatalf("%s ModeOn at %s: got %v %v", id, now, on, err)
			}
			off, err := Evaluate(id, models.ModeOff, hot, cfg, now)
			if err != nil || off {
				t.Fatalf("%s ModeOff at %s: got %v %v", id, now, off, err)
			}
		}
	}
}

func TestEvaluate_CirculationBurst(t *testing.T) {
	cfg := models.DefaultAutomationConfig()
	cfg.CirculationOn = 5 * time.Minute
	cfg.CirculationInterval = 30 * time.Minute
	id := models.DeviceID{Kind: models.KindCirculationFan, Index: 1}
	base := time.Unix(0, 0).Add(10 * time.Hour)

	on, _ := Evaluate(id, models.ModeAuto, models.SensorSnapshot{}, cfg, base.Add(4*time.Minute))
	off, _ := Evaluate(id, models.ModeAuto, models.SensorSnapshot{}, cfg, base.Add(6*time.Minute))
	again, _ := Evaluate(id, models.ModeAuto, models.SensorSnapshot{}, cfg, base.Add(31*time.Minute))
	if !on || off || !again {
		t.Fatalf("burst pattern wrong: on=%v off=%v again=%v", on, off, again)
	}
}

func TestExhaustOn_FailSafeLow(t *testing.T) {
	cases := []struct {
		name string
		snap models.SensorSnapshot
		want bool
	}{
		{
			name: "temperature absent, humidity above threshold",
			snap: models.SensorSnapshot{Climate: []models.ClimateReading{{HumidityPct: models.Float64(70)}}},
			want: true,
		},
		{
			name: "humidity absent, temperature above threshold",
			snap: models.SensorSnapshot{Climate: []models.ClimateReading{{TemperatureC: models.Float64(30)}}},
			want: true,
		},
		{
			name: "all sensors absent",
			snap: models.SensorSnapshot{Climate: []models.ClimateReading{{}, {}}},
			want: false,
		},
		{
			name: "both below thresholds",
			snap: models.SensorSnapshot{Climate: []models.ClimateReading{{TemperatureC: models.Float64(22), HumidityPct: models.Float64(50)}}},
			want: false,
		},
		{
			name: "exactly at threshold is not above",
			snap: models.SensorSnapshot{Climate: []models.ClimateReading{{TemperatureC: models.Float64(27), HumidityPct: models.Float64(65)}}},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExhaustOn(tc.snap, 27, 65); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_RejectsSolenoidAndUnknownMode(t *testing.T) {
	cfg := models.DefaultAutomationConfig()
	if _, err := Evaluate(models.Solenoid, models.ModeAuto, models.SensorSnapshot{}, cfg, at(1, 0)); err == nil {
		t.Fatalf("expected error evaluating solenoid")
	}
	id := models.DeviceID{Kind: models.KindPump, Index: 1}
	if _, err := Evaluate(id, models.Mode("turbo"), models.SensorSnapshot{}, cfg, at(1, 0)); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
