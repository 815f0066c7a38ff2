//go:build linux

package hardware

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"hydroponics_controller/internal/models"
)

// GPIORelays drives active-low relay modules: a low line energises the coil.
type GPIORelays struct {
	chip  *gpiocdev.Chip
	lines map[models.DeviceID]*gpiocdev.Line
}

// NewGPIORelays requests every relay line as an output, initialised off.
func NewGPIORelays(chipName string, offsets map[models.DeviceID]int) (*GPIORelays, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("hydroponics"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	r := &GPIORelays{chip: chip, lines: make(map[models.DeviceID]*gpiocdev.Line, len(offsets))}
	for id, offset := range offsets {
		// Active-low: logical 0 keeps the relay released.
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.AsActiveLow)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("request relay %s on pin %d: %w", id, offset, err)
		}
		r.lines[id] = line
	}
	return r, nil
}

// Set switches one relay and reads the line back to confirm the write.
func (r *GPIORelays) Set(id models.DeviceID, on bool) error {
	line, ok := r.lines[id]
	if !ok {
		return fmt.Errorf("no relay line for %s", id)
	}
	want := 0
	if on {
		want = 1
	}
	if err := line.SetValue(want); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	got, err := line.Value()
	if err != nil {
		return fmt.Errorf("read back %s: %w", id, err)
	}
	if got != want {
		return fmt.Errorf("read back %s: got %d, want %d", id, got, want)
	}
	return nil
}

// Close releases every line and the chip.
func (r *GPIORelays) Close() error {
	var errs []error
	for _, l := range r.lines {
		errs = append(errs, l.Close())
	}
	if r.chip != nil {
		errs = append(errs, r.chip.Close())
	}
	return errors.Join(errs...)
}

// GPIOWaterInputs reads the float and overflow switches. All switches are
// wired to ground with pull-ups: a float reads high when the water is below
// it, and the overflow switch pulls low when it trips.
type GPIOWaterInputs struct {
	chip      *gpiocdev.Chip
	floats    [3]*gpiocdev.Line
	overflow  *gpiocdev.Line
	reservoir *gpiocdev.Line
}

// NewGPIOWaterInputs requests the switch lines as pulled-up inputs.
func NewGPIOWaterInputs(chipName string, pins Pins) (*GPIOWaterInputs, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("hydroponics"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	w := &GPIOWaterInputs{chip: chip}
	for i, pin := range pins.Floats {
		l, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("request float %d pin %d: %w", i+1, pin, err)
		}
		w.floats[i] = l
	}
	if w.overflow, err = chip.RequestLine(pins.Overflow, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("request overflow pin %d: %w", pins.Overflow, err)
	}
	if pins.ReservoirLow >= 0 {
		if w.reservoir, err = chip.RequestLine(pins.ReservoirLow, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("request reservoir pin %d: %w", pins.ReservoirLow, err)
		}
	}
	return w, nil
}

// Read samples every switch. Raw 0 (pulled to ground) means wet for floats
// and tripped for the overflow switch.
func (w *GPIOWaterInputs) Read() (WaterLevels, error) {
	var lv WaterLevels
	wet := [3]*bool{&lv.FloatLow, &lv.FloatMid, &lv.FloatHigh}
	for i, l := range w.floats {
		v, err := l.Value()
		if err != nil {
			return WaterLevels{}, fmt.Errorf("read float %d: %w", i+1, err)
		}
		*wet[i] = v == 0
	}
	v, err := w.overflow.Value()
	if err != nil {
		return WaterLevels{}, fmt.Errorf("read overflow: %w", err)
	}
	lv.Overflow = v == 0
	if w.reservoir != nil {
		v, err := w.reservoir.Value()
		if err != nil {
			return WaterLevels{}, fmt.Errorf("read reservoir: %w", err)
		}
		// The reservoir switch is a float: high means the source is below it.
		low := v == 1
		lv.ReservoirLow = &low
	}
	return lv, nil
}

// Close releases the lines and the chip.
func (w *GPIOWaterInputs) Close() error {
	var errs []error
	for _, l := range w.floats {
		if l != nil {
			errs = append(errs, l.Close())
		}
	}
	if w.overflow != nil {
		errs = append(errs, w.overflow.Close())
	}
	if w.reservoir != nil {
		errs = append(errs, w.reservoir.Close())
	}
	if w.chip != nil {
		errs = append(errs, w.chip.Close())
	}
	return errors.Join(errs...)
}
