package models

import "time"

// SensorReading is one row of sensor history.
type SensorReading struct {
	RecordedAt   time.Time `json:"recorded_at"`
	TemperatureC *float64  `json:"temperature_c"`
	HumidityPct  *float64  `json:"humidity_pct"`
	WaterLevelOK bool      `json:"water_level_ok"` // all floats wet
	FloatLow     bool      `json:"float_low"`
	FloatMid     bool      `json:"float_mid"`
	FloatHigh    bool      `json:"float_high"`
	Overflow     bool      `json:"overflow"`
}

// ReadingFromSnapshot condenses a tick snapshot into a history row.
func ReadingFromSnapshot(s SensorSnapshot) SensorReading {
	r := SensorReading{
		RecordedAt:   s.TakenAt.UTC(),
		WaterLevelOK: s.AllFloatsWet(),
		FloatLow:     s.FloatLow,
		FloatMid:     s.FloatMid,
		FloatHigh:    s.FloatHigh,
		Overflow:     s.Overflow,
	}
	if t, ok := s.TemperatureC(); ok {
		r.TemperatureC = Float64(t)
	}
	if h, ok := s.HumidityPct(); ok {
		r.HumidityPct = Float64(h)
	}
	return r
}
