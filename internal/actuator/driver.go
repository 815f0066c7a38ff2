// Package actuator applies desired on/off states to physical outputs.
package actuator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"hydroponics_controller/internal/models"
)

// ErrActuation marks a physical write that could not be confirmed.
var ErrActuation = errors.New("actuation failed")

// Output is the physical relay layer.
type Output interface {
	Set(id models.DeviceID, on bool) error
}

// ActuationError reports a failed write for one device.
type ActuationError struct {
	Device models.DeviceID
	Want   bool
	Err    error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("%s: set %t: %v", e.Device, e.Want, e.Err)
}

func (e *ActuationError) Unwrap() []error { return []error{ErrActuation, e.Err} }

// Change is a committed state change.
type Change struct {
	Device models.DeviceID
	Old    bool
	New    bool
	At     time.Time
}

type record struct {
	committed      bool
	known          bool // committed reflects a confirmed write
	lastTransition time.Time
	lastEvaluated  time.Time
	failing        bool
}

// Driver tracks committed relay states and writes only on change.
type Driver struct {
	out Output

	mu      sync.Mutex
	devices map[models.DeviceID]*record
	changes []Change
}

// NewDriver returns a driver with every device in an unknown state, so the
// first Apply always reaches the hardware.
func NewDriver(out Output) *Driver {
	return &Driver{out: out, devices: make(map[models.DeviceID]*record)}
}

// Apply drives id towards desired. It returns the committed state after the
// call; on failure the previous committed state is kept and the next Apply
// retries the write.
func (d *Driver) Apply(id models.DeviceID, desired bool, now time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.record(id)
	r.lastEvaluated = now
	if r.known && r.committed == desired {
		return r.committed, nil
	}

	if err := d.out.Set(id, desired); err != nil {
		r.failing = true
		return r.committed, &ActuationError{Device: id, Want: desired, Err: err}
	}
	r.failing = false

	if !r.known || r.committed != desired {
		if r.known || desired {
			d.changes = append(d.changes, Change{Device: id, Old: r.committed, New: desired, At: now})
		}
		r.lastTransition = now
	}
	r.committed = desired
	r.known = true
	return desired, nil
}

// SafeState forces every listed device off, writing even when the committed
// state is already off. All failures are returned joined.
func (d *Driver) SafeState(ids []models.DeviceID, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, id := range ids {
		r := d.record(id)
		r.lastEvaluated = now
		if err := d.out.Set(id, false); err != nil {
			r.failing = true
			errs = append(errs, &ActuationError{Device: id, Want: false, Err: err})
			continue
		}
		if r.known && r.committed {
			d.changes = append(d.changes, Change{Device: id, Old: true, New: false, At: now})
			r.lastTransition = now
		}
		r.failing = false
		r.committed = false
		r.known = true
	}
	return errors.Join(errs...)
}

// DrainChanges returns and clears the changes recorded since the last call.
func (d *Driver) DrainChanges() []Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.changes
	d.changes = nil
	return out
}

// Status returns the driver's view of a device.
func (d *Driver) Status(id models.DeviceID) (committed bool, lastTransition, lastEvaluated time.Time, failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.record(id)
	return r.committed, r.lastTransition, r.lastEvaluated, r.failing
}

func (d *Driver) record(id models.DeviceID) *record {
	r, ok := d.devices[id]
	if !ok {
		r = &record{}
		d.devices[id] = r
	}
	return r
}
