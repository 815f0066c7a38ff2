// Package automation decides whether each relay-driven device should be on.
// Everything here is a pure function of its arguments: cycling devices derive
// their phase from the wall clock, so two evaluations at the same instant with
// the same settings always agree and no counters survive between ticks.
package automation

import (
	"fmt"
	"time"

	"hydroponics_controller/internal/models"
)

// Evaluate returns the desired on/off state of a non-solenoid device.
// On and Off modes short-circuit before any schedule or threshold math.
func Evaluate(id models.DeviceID, mode models.Mode, snap models.SensorSnapshot, cfg models.AutomationConfig, now time.Time) (bool, error) {
	switch mode {
	case models.ModeOn:
		return true, nil
	case models.ModeOff:
		return false, nil
	case models.ModeAuto:
	default:
		return false, fmt.Errorf("device %s: unknown mode %q", id, mode)
	}

	switch id.Kind {
	case models.KindLight:
		return LightsOn(cfg.LightsOn, cfg.LightsOff, now), nil
	case models.KindPump:
		return InPhase(now, cfg.PumpOn, cfg.PumpOff), nil
	case models.KindCirculationFan:
		return InPhase(now, cfg.CirculationOn, cfg.CirculationInterval-cfg.CirculationOn), nil
	case models.KindExhaustFan:
		return ExhaustOn(snap, cfg.ExhaustTempHighC, cfg.ExhaustHumidHighPc), nil
	case models.KindSolenoid:
		return false, fmt.Errorf("solenoid is owned by the fill safety machine")
	default:
		return false, fmt.Errorf("device %s: unknown kind", id)
	}
}

// LightsOn reports whether now falls in the [on, off) window of the local day.
// A window whose off time is earlier than its on time wraps past midnight.
// Equal on and off times describe an empty window.
func LightsOn(on, off models.TimeOfDay, now time.Time) bool {
	cur := models.Of(now)
	if on <= off {
		return on <= cur && cur < off
	}
	return cur >= on || cur < off
}

// InPhase reports whether now sits in the "on" part of a repeating
// on-then-off cycle anchored at the Unix epoch.
func InPhase(now time.Time, on, off time.Duration) bool {
	if on <= 0 {
		return false
	}
	if off <= 0 {
		return true
	}
	period := on + off
	phase := time.Duration(now.UnixNano() % int64(period))
	if phase < 0 {
		phase += period
	}
	return phase < on
}

// ExhaustOn applies the fan thresholds. A metric whose sensors all failed
// counts as below threshold, so sensor loss never switches the fan on.
func ExhaustOn(snap models.SensorSnapshot, tempHigh, humidHigh float64) bool {
	if t, ok := snap.TemperatureC(); ok && t > tempHigh {
		return true
	}
	if h, ok := snap.HumidityPct(); ok && h > humidHigh {
		return true
	}
	return false
}
