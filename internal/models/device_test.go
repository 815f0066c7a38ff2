package models

import (
	"testing"
	"time"
)

func TestParseMode_Aliases(t *testing.T) {
	cases := map[string]Mode{
		"auto":     ModeAuto,
		"schedule": ModeAuto,
		" Cycle ":  ModeAuto,
		"ON":       ModeOn,
		"off":      ModeOff,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMode(%q)=%q, want %q", in, got, want)
		}
	}
	if _, err := ParseMode("boost"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestDeviceID_RoundTripAndBounds(t *testing.T) {
	id, err := ParseDeviceID("circulation_fan-2")
	if err != nil {
		t.Fatalf("ParseDeviceID: %v", err)
	}
	if id.Kind != KindCirculationFan || id.Index != 2 {
		t.Fatalf("unexpected id %+v", id)
	}
	if id.String() != "circulation_fan-2" {
		t.Fatalf("String()=%q", id.String())
	}
	if _, err := NewDeviceID(KindLight, 7); err == nil {
		t.Fatalf("expected out of range error for light 7")
	}
	if _, err := ParseDeviceID("pump"); err == nil {
		t.Fatalf("expected error for missing index")
	}
}

func TestAllDevices_SolenoidFirstAndCounts(t *testing.T) {
	all := AllDevices()
	if all[0] != Solenoid {
		t.Fatalf("solenoid must come first, got %v", all[0])
	}
	if len(all) != 1+LightCount+PumpCount+CirculationFanCount+ExhaustFanCount {
		t.Fatalf("unexpected device count %d", len(all))
	}
	if Solenoid.DisplayName() != "Water Solenoid" {
		t.Fatalf("DisplayName=%q", Solenoid.DisplayName())
	}
	if (DeviceID{Kind: KindPump, Index: 3}).DisplayName() != "Pump 3" {
		t.Fatalf("unexpected pump label")
	}
}

func TestSensorSnapshot_MeanSkipsAbsentUnits(t *testing.T) {
	s := SensorSnapshot{Climate: []ClimateReading{
		{TemperatureC: Float64(24), HumidityPct: nil},
		{TemperatureC: Float64(26), HumidityPct: Float64(70)},
	}}
	temp, ok := s.TemperatureC()
	if !ok || temp != 25 {
		t.Fatalf("temperature=%v ok=%v, want 25 true", temp, ok)
	}
	hum, ok := s.HumidityPct()
	if !ok || hum != 70 {
		t.Fatalf("humidity=%v ok=%v, want 70 true", hum, ok)
	}

	empty := SensorSnapshot{Climate: []ClimateReading{{}, {}}}
	if _, ok := empty.TemperatureC(); ok {
		t.Fatalf("expected absent temperature when every unit failed")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("22:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if tod != 22*60+30 || tod.String() != "22:30" {
		t.Fatalf("got %d (%s)", tod, tod)
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatalf("expected error for 25:00")
	}
	if Of(time.Date(2025, 1, 1, 6, 5, 0, 0, time.UTC)) != 6*60+5 {
		t.Fatalf("Of() mismatch")
	}
}

func TestAutomationConfig_CloneIsDeep(t *testing.T) {
	c := DefaultAutomationConfig()
	cp := c.Clone()
	id := DeviceID{Kind: KindPump, Index: 1}
	cp.Modes[id] = ModeOn
	if c.ModeOf(id) != ModeAuto {
		t.Fatalf("clone shares the modes map")
	}
}
