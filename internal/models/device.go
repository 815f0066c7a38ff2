package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeviceKind is a class of relay-driven device.
type DeviceKind string

const (
	KindLight          DeviceKind = "light"
	KindPump           DeviceKind = "pump"
	KindCirculationFan DeviceKind = "circulation_fan"
	KindExhaustFan     DeviceKind = "exhaust_fan"
	KindSolenoid       DeviceKind = "solenoid"
)

// Number of devices installed per class.
const (
	LightCount          = 6
	PumpCount           = 5
	CirculationFanCount = 2
	ExhaustFanCount     = 2
)

// ParseDeviceKind accepts the canonical kind names plus a few dashboard aliases.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "lights":
		return KindLight, nil
	case "pump", "pumps":
		return KindPump, nil
	case "circulation_fan", "circulation-fan", "circulationfan", "air_fan":
		return KindCirculationFan, nil
	case "exhaust_fan", "exhaust-fan", "exhaustfan", "env_fan":
		return KindExhaustFan, nil
	case "solenoid", "water":
		return KindSolenoid, nil
	default:
		return "", fmt.Errorf("unknown device kind %q", s)
	}
}

// Count returns how many devices of the kind exist.
func (k DeviceKind) Count() int {
	switch k {
	case KindLight:
		return LightCount
	case KindPump:
		return PumpCount
	case KindCirculationFan:
		return CirculationFanCount
	case KindExhaustFan:
		return ExhaustFanCount
	case KindSolenoid:
		return 1
	default:
		return 0
	}
}

// DeviceID identifies one device by class and 1-based index.
type DeviceID struct {
	Kind  DeviceKind `json:"kind"`
	Index int        `json:"index"`
}

// NewDeviceID validates the index against the installed count.
func NewDeviceID(kind DeviceKind, index int) (DeviceID, error) {
	if index < 1 || index > kind.Count() {
		return DeviceID{}, fmt.Errorf("%s index %d out of range 1..%d", kind, index, kind.Count())
	}
	return DeviceID{Kind: kind, Index: index}, nil
}

// Solenoid is the single water fill valve.
var Solenoid = DeviceID{Kind: KindSolenoid, Index: 1}

func (id DeviceID) String() string {
	return string(id.Kind) + "-" + strconv.Itoa(id.Index)
}

// ParseDeviceID parses the "kind-index" form produced by String.
func ParseDeviceID(s string) (DeviceID, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 {
		return DeviceID{}, fmt.Errorf("invalid device id %q", s)
	}
	kind, err := ParseDeviceKind(s[:i])
	if err != nil {
		return DeviceID{}, err
	}
	idx, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return DeviceID{}, fmt.Errorf("invalid device index in %q: %w", s, err)
	}
	return NewDeviceID(kind, idx)
}

// AutomatedDevices lists every device driven by the automation evaluator,
// i.e. everything except the solenoid, in a stable order.
func AutomatedDevices() []DeviceID {
	kinds := []DeviceKind{KindLight, KindPump, KindCirculationFan, KindExhaustFan}
	out := make([]DeviceID, 0, LightCount+PumpCount+CirculationFanCount+ExhaustFanCount)
	for _, k := range kinds {
		for i := 1; i <= k.Count(); i++ {
			out = append(out, DeviceID{Kind: k, Index: i})
		}
	}
	return out
}

// AllDevices is AutomatedDevices plus the solenoid, solenoid first.
func AllDevices() []DeviceID {
	return append([]DeviceID{Solenoid}, AutomatedDevices()...)
}

// Mode is the operator-selected control mode of a device.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeOn   Mode = "on"
	ModeOff  Mode = "off"
)

// ParseMode accepts "auto", "on", "off" and the legacy "schedule"/"cycle"
// names, which both mean auto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "schedule", "cycle":
		return ModeAuto, nil
	case "on":
		return ModeOn, nil
	case "off":
		return ModeOff, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be auto, on or off", s)
	}
}

// Device is the published view of one actuator.
type Device struct {
	ID             DeviceID  `json:"id"`
	Name           string    `json:"name"`
	Mode           Mode      `json:"mode"`
	CommandedState bool      `json:"commanded_state"`
	LastTransition time.Time `json:"last_transition,omitempty"`
	LastEvaluated  time.Time `json:"last_evaluated,omitempty"`
	Failing        bool      `json:"failing,omitempty"` // last physical write was not confirmed
}

var kindLabels = map[DeviceKind]string{
	KindLight:          "Light",
	KindPump:           "Pump",
	KindCirculationFan: "Circulation Fan",
	KindExhaustFan:     "Exhaust Fan",
	KindSolenoid:       "Water Solenoid",
}

// DisplayName is the dashboard label, e.g. "Pump 3".
func (id DeviceID) DisplayName() string {
	if id.Kind == KindSolenoid {
		return kindLabels[KindSolenoid]
	}
	return kindLabels[id.Kind] + " " + strconv.Itoa(id.Index)
}
