package models

import "time"

// FillStatus is the state of the fill safety machine.
type FillStatus string

const (
	FillIdle                FillStatus = "IDLE"
	FillFilling             FillStatus = "FILLING"
	FillTimeoutAlarm        FillStatus = "TIMEOUT_ALARM"
	FillOverflowAlarm       FillStatus = "OVERFLOW_ALARM"
	FillReservoirEmptyAlarm FillStatus = "RESERVOIR_EMPTY_ALARM"
)

// AlarmKind names a latched fill alarm.
type AlarmKind string

const (
	AlarmNone           AlarmKind = ""
	AlarmTimeout        AlarmKind = "timeout"
	AlarmOverflow       AlarmKind = "overflow"
	AlarmReservoirEmpty AlarmKind = "reservoir_empty"
)

// ParseAlarmKind validates an operator-supplied alarm name.
func ParseAlarmKind(s string) (AlarmKind, bool) {
	switch AlarmKind(s) {
	case AlarmTimeout, AlarmOverflow, AlarmReservoirEmpty:
		return AlarmKind(s), true
	default:
		return AlarmNone, false
	}
}

// Alarm returns the alarm latched by a status, if any.
func (s FillStatus) Alarm() AlarmKind {
	switch s {
	case FillTimeoutAlarm:
		return AlarmTimeout
	case FillOverflowAlarm:
		return AlarmOverflow
	case FillReservoirEmptyAlarm:
		return AlarmReservoirEmpty
	default:
		return AlarmNone
	}
}

// FillState is the published view of the fill safety machine.
type FillState struct {
	Status        FillStatus `json:"status"`
	FillStartedAt *time.Time `json:"fill_started_at,omitempty"`
	Alarm         AlarmKind  `json:"alarm,omitempty"`
	AlarmSince    *time.Time `json:"alarm_since,omitempty"`
	Acknowledged  bool       `json:"acknowledged,omitempty"` // overflow ack waiting for the level to clear
	Solenoid      bool       `json:"solenoid"`
}

// OperatorCommands are the acknowledgements and fill requests queued by the
// operator since the previous tick.
type OperatorCommands struct {
	Acknowledged  []AlarmKind
	FillRequested bool
}
