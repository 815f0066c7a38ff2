package models

import "time"

// Event types written to the device log.
const (
	EventDeviceOn          = "DEVICE_ON"
	EventDeviceOff         = "DEVICE_OFF"
	EventAlarmRaised       = "ALARM_RAISED"
	EventAlarmAcknowledged = "ALARM_ACKNOWLEDGED"
	EventAlarmCleared      = "ALARM_CLEARED"
	EventFillStarted       = "FILL_STARTED"
	EventFillCompleted     = "FILL_COMPLETED"
	EventActuationFailed   = "ACTUATION_FAILED"
	EventModeChange        = "MODE_CHANGE"
)

// DeviceEvent is a single log entry.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Device      string    `json:"device,omitempty"` // e.g. "pump-2"
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
