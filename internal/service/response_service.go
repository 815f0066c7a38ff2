package service

import "time"

// LogFilter selects device events by time range, type and device.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "DEVICE_ON", "ALARM_RAISED", ...
	Device string    // "", "pump-2", ...
}
