//go:build !linux

package hardware

import (
	"errors"

	"hydroponics_controller/internal/models"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// GPIORelays is not available on non-Linux platforms.
type GPIORelays struct{}

// NewGPIORelays returns an error on non-Linux platforms.
func NewGPIORelays(string, map[models.DeviceID]int) (*GPIORelays, error) {
	return nil, errUnsupported
}

func (r *GPIORelays) Set(models.DeviceID, bool) error { return errUnsupported }
func (r *GPIORelays) Close() error                    { return nil }

// GPIOWaterInputs is not available on non-Linux platforms.
type GPIOWaterInputs struct{}

// NewGPIOWaterInputs returns an error on non-Linux platforms.
func NewGPIOWaterInputs(string, Pins) (*GPIOWaterInputs, error) {
	return nil, errUnsupported
}

func (w *GPIOWaterInputs) Read() (WaterLevels, error) { return WaterLevels{}, errUnsupported }
func (w *GPIOWaterInputs) Close() error               { return nil }
