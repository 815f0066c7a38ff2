package hardware

import (
	"errors"
	"sync"

	"hydroponics_controller/internal/models"
)

// FakeRelays records relay states for tests and bench runs.
type FakeRelays struct {
	mu     sync.Mutex
	states map[models.DeviceID]bool
	writes int

	// Fail makes Set return the mapped error for that device.
	Fail map[models.DeviceID]error

	Closed bool
}

// NewFakeRelays creates a relay bank with every relay released.
func NewFakeRelays() *FakeRelays {
	return &FakeRelays{states: make(map[models.DeviceID]bool), Fail: make(map[models.DeviceID]error)}
}

// Set records the requested state unless a failure is scripted.
func (f *FakeRelays) Set(id models.DeviceID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[id]; err != nil {
		return err
	}
	f.states[id] = on
	f.writes++
	return nil
}

// On reports the last state written for id.
func (f *FakeRelays) On(id models.DeviceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

// Writes is the number of successful writes.
func (f *FakeRelays) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// SetFailure scripts (or clears, with nil) a write failure for id.
func (f *FakeRelays) SetFailure(id models.DeviceID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, id)
		return
	}
	f.Fail[id] = err
}

// Close marks the bank as closed.
func (f *FakeRelays) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeWaterInputs returns scripted readings. Each Read consumes the next
// sample; when exhausted the last sample repeats.
type FakeWaterInputs struct {
	mu      sync.Mutex
	Samples []WaterLevels
	index   int

	// ReadError, if set, will be returned by Read().
	ReadError error
	Closed    bool
}

// NewFakeWaterInputs creates a FakeWaterInputs with the given samples.
func NewFakeWaterInputs(samples ...WaterLevels) *FakeWaterInputs {
	return &FakeWaterInputs{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeWaterInputs) Read() (WaterLevels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return WaterLevels{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return WaterLevels{}, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Push appends samples and moves the cursor onto the first new one.
func (f *FakeWaterInputs) Push(samples ...WaterLevels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(samples) == 0 {
		return
	}
	f.index = len(f.Samples)
	f.Samples = append(f.Samples, samples...)
}

// Close marks the inputs as closed.
func (f *FakeWaterInputs) Close() error {
	f.Closed = true
	return nil
}
