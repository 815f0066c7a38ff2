package models

import "time"

// ClimateReading is one DHT unit's result for a tick. Nil means the read failed.
type ClimateReading struct {
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
}

// SensorSnapshot is captured once per tick and never mutated afterwards.
type SensorSnapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Climate []ClimateReading `json:"climate"`

	// Float sensors, true = wet.
	FloatLow  bool `json:"float_low"`
	FloatMid  bool `json:"float_mid"`
	FloatHigh bool `json:"float_high"`
	Overflow  bool `json:"overflow"` // emergency high level

	// WaterSensorsOK is false when the float/overflow inputs could not be read
	// this tick; the float fields then read dry.
	WaterSensorsOK bool `json:"water_sensors_ok"`

	// ReservoirLow is the optional source-depleted indicator. Nil when no
	// such sensor is installed.
	ReservoirLow *bool `json:"reservoir_low,omitempty"`
}

// TemperatureC is the mean of the units that produced a temperature.
func (s SensorSnapshot) TemperatureC() (float64, bool) {
	return mean(s.Climate, func(r ClimateReading) *float64 { return r.TemperatureC })
}

// HumidityPct is the mean of the units that produced a humidity value.
func (s SensorSnapshot) HumidityPct() (float64, bool) {
	return mean(s.Climate, func(r ClimateReading) *float64 { return r.HumidityPct })
}

// AllFloatsWet reports whether every float sensor is triggered.
func (s SensorSnapshot) AllFloatsWet() bool {
	return s.FloatLow && s.FloatMid && s.FloatHigh
}

func mean(rs []ClimateReading, pick func(ClimateReading) *float64) (float64, bool) {
	var sum float64
	n := 0
	for _, r := range rs {
		if v := pick(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
