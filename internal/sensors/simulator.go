package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hydroponics_controller/internal/hardware"
	"hydroponics_controller/internal/models"
)

// ----------- Simulation constants -----------
const (
	AmbientC            = 22.0  // room temperature °C
	AmbientHumidityPct  = 55.0  // room humidity %
	LightHeatCPerSec    = 0.002 // °C per second per lit light
	ExhaustCoolCPerSec  = 0.01  // °C per second per running exhaust fan
	DriftPerSec         = 0.001 // fraction of the gap to ambient closed per second
	PumpHumidPctPerSec  = 0.004 // % RH per second per running pump
	ExhaustDryPctPerSec = 0.02  // % RH per second per running exhaust fan

	FillRatePerSec    = 0.002   // tank fraction per second with the solenoid open
	PumpDrawPerSec    = 0.00002 // tank fraction per second per running pump
	SourceDrawPerFill = 1.0     // source fraction used per tank fraction filled
)

// Float switch heights as tank fractions.
const (
	FloatLowAt  = 0.25
	FloatMidAt  = 0.50
	FloatHighAt = 0.85
	OverflowAt  = 0.97
)

// Environment is a simulated grow box for bench runs. It is the relay bank,
// the water switches and the climate units at once, and integrates its state
// lazily from the wall clock whenever it is touched.
type Environment struct {
	mu  sync.Mutex
	now func() time.Time

	tempC       float64
	humidityPct float64
	tank        float64 // 0 empty .. 1 brim
	source      float64 // main reservoir, 0 empty .. 1 full
	relays      map[models.DeviceID]bool
	updatedAt   time.Time

	// Fault injection for bench testing.
	ClimateFault error
	WaterFault   error
	StuckHigh    bool // high float reads wet regardless of level
	HasReservoir bool // expose the reservoir-low switch
}

// NewEnvironment starts at ambient with a half-full tank and a full source.
func NewEnvironment(now func() time.Time) *Environment {
	if now == nil {
		now = time.Now
	}
	return &Environment{
		now:         now,
		tempC:       AmbientC,
		humidityPct: AmbientHumidityPct,
		tank:        0.6,
		source:      1.0,
		relays:      make(map[models.DeviceID]bool),
		updatedAt:   now(),
	}
}

var _ hardware.Relays = (*Environment)(nil)
var _ hardware.WaterInputs = (*Environment)(nil)

// Set switches a simulated relay.
func (e *Environment) Set(id models.DeviceID, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	e.relays[id] = on
	return nil
}

// Close is a no-op.
func (e *Environment) Close() error { return nil }

// Read reports the float and overflow switches.
func (e *Environment) Read() (hardware.WaterLevels, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.WaterFault != nil {
		return hardware.WaterLevels{}, e.WaterFault
	}
	e.advance()
	lv := hardware.WaterLevels{
		FloatLow:  e.tank >= FloatLowAt,
		FloatMid:  e.tank >= FloatMidAt,
		FloatHigh: e.tank >= FloatHighAt || e.StuckHigh,
		Overflow:  e.tank >= OverflowAt,
	}
	if e.HasReservoir {
		low := e.source <= 0.05
		lv.ReservoirLow = &low
	}
	return lv, nil
}

// Unit returns a climate unit whose readings are offset by biasC/biasPct.
func (e *Environment) Unit(name string, biasC, biasPct float64) Hygrometer {
	return &simUnit{env: e, name: name, biasC: biasC, biasPct: biasPct}
}

// SetTank overrides the tank level.
func (e *Environment) SetTank(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	e.tank = clamp(level, 0, 1)
}

// SetSource overrides the main reservoir level.
func (e *Environment) SetSource(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	e.source = clamp(level, 0, 1)
}

// SetClimate overrides temperature and humidity.
func (e *Environment) SetClimate(tempC, humidityPct float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	e.tempC, e.humidityPct = tempC, humidityPct
}

// Tank returns the current tank level.
func (e *Environment) Tank() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	return e.tank
}

// Climate returns the current true temperature and humidity.
func (e *Environment) Climate() (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance()
	return e.tempC, e.humidityPct
}

// advance integrates state since the last update. Caller holds mu.
func (e *Environment) advance() {
	now := e.now()
	elapsed := now.Sub(e.updatedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	e.updatedAt = now

	lights := e.count(models.KindLight)
	pumps := e.count(models.KindPump)
	exhaust := e.count(models.KindExhaustFan)

	e.tempC += (AmbientC-e.tempC)*DriftPerSec*elapsed +
		float64(lights)*LightHeatCPerSec*elapsed -
		float64(exhaust)*ExhaustCoolCPerSec*elapsed
	e.tempC = maxFloat(e.tempC, AmbientC-5)

	e.humidityPct += (AmbientHumidityPct-e.humidityPct)*DriftPerSec*elapsed +
		float64(pumps)*PumpHumidPctPerSec*elapsed -
		float64(exhaust)*ExhaustDryPctPerSec*elapsed
	e.humidityPct = clamp(e.humidityPct, 10, 100)

	if e.relays[models.Solenoid] && e.source > 0 {
		added := minFloat(FillRatePerSec*elapsed, e.source/SourceDrawPerFill)
		e.tank += added
		e.source -= added * SourceDrawPerFill
	}
	e.tank -= float64(pumps) * PumpDrawPerSec * elapsed
	e.tank = clamp(e.tank, 0, 1)
	e.source = clamp(e.source, 0, 1)
}

func (e *Environment) count(kind models.DeviceKind) int {
	n := 0
	for id, on := range e.relays {
		if on && id.Kind == kind {
			n++
		}
	}
	return n
}

type simUnit struct {
	env     *Environment
	name    string
	biasC   float64
	biasPct float64
}

func (u *simUnit) Name() string { return u.name }

func (u *simUnit) ReadClimate(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	u.env.mu.Lock()
	defer u.env.mu.Unlock()
	if u.env.ClimateFault != nil {
		return 0, 0, fmt.Errorf("%s: %w", u.name, u.env.ClimateFault)
	}
	u.env.advance()
	return u.env.tempC + u.biasC, clamp(u.env.humidityPct+u.biasPct, 0, 100), nil
}

// ErrSimulatedFault is a convenience fault for bench runs.
var ErrSimulatedFault = errors.New("simulated sensor fault")

// helpers
func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return minFloat(maxFloat(v, lo), hi)
}
