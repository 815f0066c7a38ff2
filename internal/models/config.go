package models

import (
	"fmt"
	"time"
)

// TimeOfDay is minutes after local midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// WaterMode selects how the fill valve is allowed to operate.
type WaterMode string

const (
	WaterAuto WaterMode = "auto" // float-driven filling
	WaterOff  WaterMode = "off"  // never start a fill
)

// Fill timeout bounds accepted from the operator.
const (
	MinFillTimeout     = 5 * time.Minute
	MaxFillTimeout     = 30 * time.Minute
	DefaultFillTimeout = 10 * time.Minute
)

// AutomationConfig is one consistent copy of the runtime settings, read once
// per tick.
type AutomationConfig struct {
	LightsOn  TimeOfDay `json:"lights_on"`
	LightsOff TimeOfDay `json:"lights_off"`

	PumpOn  time.Duration `json:"pump_on"`
	PumpOff time.Duration `json:"pump_off"`

	ExhaustTempHighC   float64 `json:"exhaust_temp_high_c"`
	ExhaustHumidHighPc float64 `json:"exhaust_humid_high_pct"`

	CirculationOn       time.Duration `json:"circulation_on"`       // burst length
	CirculationInterval time.Duration `json:"circulation_interval"` // one burst per interval

	FillTimeout time.Duration `json:"fill_timeout"`
	WaterMode   WaterMode     `json:"water_mode"`

	Modes map[DeviceID]Mode `json:"-"`
}

// ModeOf returns the configured mode, auto when unset.
func (c AutomationConfig) ModeOf(id DeviceID) Mode {
	if m, ok := c.Modes[id]; ok {
		return m
	}
	return ModeAuto
}

// Clone returns a deep copy so the caller can hold it across a tick.
func (c AutomationConfig) Clone() AutomationConfig {
	out := c
	out.Modes = make(map[DeviceID]Mode, len(c.Modes))
	for k, v := range c.Modes {
		out.Modes[k] = v
	}
	return out
}

// DefaultAutomationConfig mirrors the factory settings of the grow box.
func DefaultAutomationConfig() AutomationConfig {
	c := AutomationConfig{
		LightsOn:            6 * 60,
		LightsOff:           22 * 60,
		PumpOn:              15 * time.Minute,
		PumpOff:             45 * time.Minute,
		ExhaustTempHighC:    27.0,
		ExhaustHumidHighPc:  65.0,
		CirculationOn:       5 * time.Minute,
		CirculationInterval: 30 * time.Minute,
		FillTimeout:         DefaultFillTimeout,
		WaterMode:           WaterAuto,
		Modes:               make(map[DeviceID]Mode),
	}
	for _, id := range AutomatedDevices() {
		c.Modes[id] = ModeAuto
	}
	return c
}
