// Package fillsafety owns the water solenoid. The Machine is the only code
// allowed to decide whether the valve is open, and it commands it open only
// while Filling, and never for longer than the configured fill timeout.
package fillsafety

import (
	"time"

	"hydroponics_controller/internal/models"
)

// Input is everything the machine looks at for one tick.
type Input struct {
	Now         time.Time
	Snapshot    models.SensorSnapshot
	FillTimeout time.Duration
	WaterMode   models.WaterMode

	// Operator commands collected since the previous tick.
	Acknowledged  []models.AlarmKind
	FillRequested bool
}

// Transition describes a state change made during Step.
type Transition struct {
	From  models.FillStatus
	To    models.FillStatus
	Alarm models.AlarmKind // alarm raised or cleared, if any
	At    time.Time
	Cause string
}

// Decision is the result of one Step.
type Decision struct {
	Solenoid    bool
	State       models.FillState
	Transitions []Transition
	// IgnoredAcks are acknowledgements that did not match a latched alarm
	// or arrived while the overflow sensor was still wet.
	IgnoredAcks []models.AlarmKind
}

// Machine is not safe for concurrent use; the control loop owns it.
type Machine struct {
	status        models.FillStatus
	fillStartedAt time.Time
	alarmSince    time.Time

	// Overflow latch bookkeeping.
	overflowClearTicks int               // consecutive ticks with overflow == false
	overflowAcked      bool              // operator acknowledged after the sensor cleared
	preempted          models.FillStatus // alarm latched before overflow took over
}

// New returns a machine in Idle.
func New() *Machine {
	return &Machine{status: models.FillIdle}
}

// Restore resumes a latched alarm, e.g. after a restart. Non-alarm states are
// ignored: a fill never resumes across a restart.
func (m *Machine) Restore(status models.FillStatus, since time.Time) {
	switch status {
	case models.FillTimeoutAlarm, models.FillReservoirEmptyAlarm, models.FillOverflowAlarm:
		m.status = status
		m.alarmSince = since
	}
}

// Status returns the current state.
func (m *Machine) Status() models.FillStatus { return m.status }

// Deadline returns the instant a running fill must be cut off.
func (m *Machine) Deadline(timeout time.Duration) (time.Time, bool) {
	if m.status != models.FillFilling {
		return time.Time{}, false
	}
	return m.fillStartedAt.Add(EffectiveTimeout(timeout)), true
}

// EffectiveTimeout clamps a configured timeout into the accepted range.
// A zero value selects the default.
func EffectiveTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return models.DefaultFillTimeout
	case d < models.MinFillTimeout:
		return models.MinFillTimeout
	case d > models.MaxFillTimeout:
		return models.MaxFillTimeout
	default:
		return d
	}
}

// Step advances the machine by one tick. Overflow is checked first and wins
// over every other input.
func (m *Machine) Step(in Input) Decision {
	var d Decision
	snap := in.Snapshot

	if snap.Overflow {
		m.overflowClearTicks = 0
		m.overflowAcked = false
		if m.status != models.FillOverflowAlarm {
			if m.status.Alarm() != models.AlarmNone {
				m.preempted = m.status
			}
			m.to(&d, models.FillOverflowAlarm, models.AlarmOverflow, in.Now, "overflow sensor triggered")
		}
		m.ignoreAcks(&d, in.Acknowledged)
		return m.decide(d)
	}

	switch m.status {
	case models.FillOverflowAlarm:
		m.stepOverflow(&d, in)
	case models.FillTimeoutAlarm, models.FillReservoirEmptyAlarm:
		m.stepLatched(&d, in)
	case models.FillFilling:
		m.ignoreAcks(&d, in.Acknowledged)
		m.stepFilling(&d, in)
	default:
		m.ignoreAcks(&d, in.Acknowledged)
		m.stepIdle(&d, in)
	}
	return m.decide(d)
}

// stepOverflow keeps the overflow latch until the sensor has read dry for a
// whole tick, the tank is no longer brim full, and an operator has
// acknowledged the alarm. Unreadable water inputs prove nothing and restart
// the dry count.
func (m *Machine) stepOverflow(d *Decision, in Input) {
	if !in.Snapshot.WaterSensorsOK {
		m.overflowClearTicks = 0
		m.ignoreAcks(d, in.Acknowledged)
		return
	}
	m.overflowClearTicks++
	for _, k := range in.Acknowledged {
		if k == models.AlarmOverflow {
			m.overflowAcked = true
		} else if k != m.preempted.Alarm() {
			d.IgnoredAcks = append(d.IgnoredAcks, k)
		} else {
			m.preempted = ""
		}
	}

	levelClear := m.overflowClearTicks >= 2 && !in.Snapshot.AllFloatsWet()
	if !levelClear || !m.overflowAcked {
		return
	}

	next := models.FillIdle
	if m.preempted != "" {
		next = m.preempted
	}
	m.preempted = ""
	m.overflowAcked = false
	m.to(d, next, models.AlarmOverflow, in.Now, "overflow cleared and acknowledged")
}

// stepLatched leaves a timeout/reservoir alarm only on a matching ack.
func (m *Machine) stepLatched(d *Decision, in Input) {
	want := m.status.Alarm()
	cleared := false
	for _, k := range in.Acknowledged {
		if k == want && !cleared {
			cleared = true
			continue
		}
		d.IgnoredAcks = append(d.IgnoredAcks, k)
	}
	if cleared {
		m.to(d, models.FillIdle, want, in.Now, "acknowledged by operator")
	}
}

func (m *Machine) stepIdle(d *Decision, in Input) {
	snap := in.Snapshot
	if in.WaterMode == models.WaterOff || !snap.WaterSensorsOK {
		return
	}
	needWater := !snap.FloatMid
	manual := in.FillRequested && !snap.FloatHigh
	if !needWater && !manual {
		return
	}
	m.fillStartedAt = in.Now
	cause := "water level low"
	if !needWater {
		cause = "manual fill requested"
	}
	m.to(d, models.FillFilling, models.AlarmNone, in.Now, cause)
}

func (m *Machine) stepFilling(d *Decision, in Input) {
	snap := in.Snapshot
	// A dropped-out sensor reads dry, so it can never end a fill early
	// by looking satisfied.
	if snap.WaterSensorsOK && snap.FloatHigh {
		m.fillStartedAt = time.Time{}
		m.to(d, models.FillIdle, models.AlarmNone, in.Now, "target level reached")
		return
	}

	if in.Now.Sub(m.fillStartedAt) >= EffectiveTimeout(in.FillTimeout) {
		m.fillStartedAt = time.Time{}
		if snap.ReservoirLow != nil && *snap.ReservoirLow {
			m.to(d, models.FillReservoirEmptyAlarm, models.AlarmReservoirEmpty, in.Now, "fill timed out with source reservoir low")
			return
		}
		m.to(d, models.FillTimeoutAlarm, models.AlarmTimeout, in.Now, "fill timed out before target level")
		return
	}

	if in.WaterMode == models.WaterOff {
		m.fillStartedAt = time.Time{}
		m.to(d, models.FillIdle, models.AlarmNone, in.Now, "water system switched off")
	}
}

func (m *Machine) ignoreAcks(d *Decision, acks []models.AlarmKind) {
	d.IgnoredAcks = append(d.IgnoredAcks, acks...)
}

func (m *Machine) to(d *Decision, next models.FillStatus, alarm models.AlarmKind, now time.Time, cause string) {
	d.Transitions = append(d.Transitions, Transition{From: m.status, To: next, Alarm: alarm, At: now, Cause: cause})
	m.status = next
	if next.Alarm() != models.AlarmNone {
		m.alarmSince = now
	} else {
		m.alarmSince = time.Time{}
	}
	if next != models.FillOverflowAlarm {
		m.overflowClearTicks = 0
	}
}

func (m *Machine) decide(d Decision) Decision {
	d.Solenoid = m.status == models.FillFilling
	d.State = m.State()
	return d
}

// State is the published view of the machine.
func (m *Machine) State() models.FillState {
	st := models.FillState{
		Status:       m.status,
		Alarm:        m.status.Alarm(),
		Acknowledged: m.status == models.FillOverflowAlarm && m.overflowAcked,
		Solenoid:     m.status == models.FillFilling,
	}
	if m.status == models.FillFilling {
		t := m.fillStartedAt
		st.FillStartedAt = &t
	}
	if !m.alarmSince.IsZero() {
		t := m.alarmSince
		st.AlarmSince = &t
	}
	return st
}
