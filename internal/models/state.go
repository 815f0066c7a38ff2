package models

import "time"

// ControllerState is the read-only picture published after every tick.
type ControllerState struct {
	Tick      uint64         `json:"tick"`
	UpdatedAt time.Time      `json:"updated_at"`
	Sensors   SensorSnapshot `json:"sensors"`
	Devices   []Device       `json:"devices"`
	Fill      FillState      `json:"fill"`
	WaterMode WaterMode      `json:"water_mode"`
	Errors    []string       `json:"errors,omitempty"` // e.g. ["pump-3: relay write failed"]
}

// Device returns the published entry for id.
func (s ControllerState) Device(id DeviceID) (Device, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
