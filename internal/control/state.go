package control

import (
	"sync/atomic"

	"hydroponics_controller/internal/models"
)

// StateStore holds the most recently published ControllerState. Readers
// always see one complete tick: the loop swaps in a new value, it never
// edits the published one.
type StateStore struct {
	p atomic.Pointer[models.ControllerState]
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

// Publish replaces the current state with a private copy of st.
func (s *StateStore) Publish(st models.ControllerState) {
	c := cloneState(st)
	s.p.Store(&c)
}

// Current returns a copy of the published state; ok is false before the
// first tick.
func (s *StateStore) Current() (models.ControllerState, bool) {
	p := s.p.Load()
	if p == nil {
		return models.ControllerState{}, false
	}
	return cloneState(*p), true
}

func cloneState(st models.ControllerState) models.ControllerState {
	out := st
	out.Devices = append([]models.Device(nil), st.Devices...)
	out.Errors = append([]string(nil), st.Errors...)
	out.Sensors.Climate = append([]models.ClimateReading(nil), st.Sensors.Climate...)
	return out
}
