// Package hardware drives the relay board and reads the water-level inputs.
// The real implementation uses the Linux GPIO character device; the fakes
// let the rest of the controller run without a Raspberry Pi.
package hardware

import (
	"fmt"

	"hydroponics_controller/internal/models"
)

// Relays switches the relay board.
type Relays interface {
	Set(id models.DeviceID, on bool) error
	Close() error
}

// WaterLevels is one reading of the float and overflow switches, already in
// logical form (true = wet / overflowing).
type WaterLevels struct {
	FloatLow     bool
	FloatMid     bool
	FloatHigh    bool
	Overflow     bool
	ReservoirLow *bool // nil when no reservoir switch is wired
}

// WaterInputs reads the water-level switches.
type WaterInputs interface {
	Read() (WaterLevels, error)
	Close() error
}

// Pins maps devices and switches to BCM line offsets.
type Pins struct {
	Lights          []int
	Pumps           []int
	ExhaustFans     []int
	CirculationFans []int
	Solenoid        int
	Floats          [3]int // low, mid, high
	Overflow        int
	ReservoirLow    int // -1 when absent
}

// DefaultPins is the wiring of the grow box.
func DefaultPins() Pins {
	return Pins{
		Lights:          []int{6, 7, 8, 9, 20, 21},
		Pumps:           []int{27, 5, 10, 11, 12},
		ExhaustFans:     []int{13, 16},
		CirculationFans: []int{19, 26},
		Solenoid:        22,
		Floats:          [3]int{17, 23, 24},
		Overflow:        25,
		ReservoirLow:    -1,
	}
}

// RelayOffsets resolves every device to its line offset.
func (p Pins) RelayOffsets() (map[models.DeviceID]int, error) {
	out := map[models.DeviceID]int{models.Solenoid: p.Solenoid}
	groups := []struct {
		kind models.DeviceKind
		pins []int
	}{
		{models.KindLight, p.Lights},
		{models.KindPump, p.Pumps},
		{models.KindExhaustFan, p.ExhaustFans},
		{models.KindCirculationFan, p.CirculationFans},
	}
	seen := map[int]models.DeviceID{}
	for _, g := range groups {
		if len(g.pins) != g.kind.Count() {
			return nil, fmt.Errorf("%s: %d pins configured, %d devices installed", g.kind, len(g.pins), g.kind.Count())
		}
		for i, pin := range g.pins {
			out[models.DeviceID{Kind: g.kind, Index: i + 1}] = pin
		}
	}
	for id, pin := range out {
		if other, dup := seen[pin]; dup {
			return nil, fmt.Errorf("pin %d assigned to both %s and %s", pin, other, id)
		}
		seen[pin] = id
	}
	return out, nil
}
