// Package control runs the grow controller's tick: read sensors, step the
// fill safety machine, evaluate every device, drive the relays and publish
// the resulting state.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hydroponics_controller/internal/actuator"
	"hydroponics_controller/internal/automation"
	"hydroponics_controller/internal/fillsafety"
	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/metrics"
	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/sensors"
)

const (
	DefaultTick            = 2 * time.Second
	DefaultHistoryInterval = time.Minute

	// persistTimeout bounds each database write made from a tick.
	persistTimeout = 2 * time.Second
)

// ErrEvaluationPanic wraps a panic recovered while evaluating one device.
var ErrEvaluationPanic = errors.New("device evaluation panicked")

// ConfigSource provides one consistent settings copy and the queued operator
// commands per tick.
type ConfigSource interface {
	Config() models.AutomationConfig
	Pending() models.OperatorCommands
}

type EventRecorder interface {
	Append(ctx context.Context, e models.DeviceEvent) error
}

type ReadingRecorder interface {
	Insert(ctx context.Context, r models.SensorReading) error
}

// FillStateStore persists latched fill alarms across restarts.
type FillStateStore interface {
	Save(ctx context.Context, s models.FillState) error
	Load(ctx context.Context) (models.FillState, bool, error)
}

type Notifier interface {
	Events(events []models.DeviceEvent)
}

// Options holds the loop's optional collaborators. Nil recorders are skipped.
type Options struct {
	Tick            time.Duration
	HistoryInterval time.Duration

	Events    EventRecorder
	Readings  ReadingRecorder
	FillStore FillStateStore
	Notifier  Notifier
	Log       *logger.Logger

	Now func() time.Time
}

type evaluateFunc func(id models.DeviceID, mode models.Mode, snap models.SensorSnapshot, cfg models.AutomationConfig, now time.Time) (bool, error)

// Loop is the single owner of the fill machine and the actuator driver.
// Tick must not be called concurrently.
type Loop struct {
	sensors sensors.Provider
	config  ConfigSource
	driver  *actuator.Driver
	machine *fillsafety.Machine
	store   *StateStore
	opts    Options
	log     *logger.Logger
	now     func() time.Time

	evaluate evaluateFunc

	tick          uint64
	fillTimeout   time.Duration
	lastHistory   time.Time
	failing       map[models.DeviceID]bool
	persistedFill models.FillStatus
}

func New(sp sensors.Provider, cfg ConfigSource, out actuator.Output, store *StateStore, opts Options) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.HistoryInterval <= 0 {
		opts.HistoryInterval = DefaultHistoryInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	if store == nil {
		store = NewStateStore()
	}
	return &Loop{
		sensors:       sp,
		config:        cfg,
		driver:        actuator.NewDriver(out),
		machine:       fillsafety.New(),
		store:         store,
		opts:          opts,
		log:           log,
		now:           opts.Now,
		evaluate:      automation.Evaluate,
		failing:       make(map[models.DeviceID]bool),
		persistedFill: models.FillIdle,
	}
}

// Store returns the published state store.
func (l *Loop) Store() *StateStore { return l.store }

// Start restores a latched fill alarm and commands every relay off, so the
// first tick begins from a known state.
func (l *Loop) Start(ctx context.Context) error {
	if l.opts.FillStore != nil {
		st, ok, err := l.opts.FillStore.Load(ctx)
		switch {
		case err != nil:
			l.log.Errorw("fill_state_load_failed", "error", err)
		case ok && st.Status.Alarm() != models.AlarmNone:
			since := l.now()
			if st.AlarmSince != nil {
				since = *st.AlarmSince
			}
			l.machine.Restore(st.Status, since)
			l.persistedFill = st.Status
			l.log.Warnw("fill_alarm_restored", "status", st.Status, "since", since)
		}
	}

	err := l.driver.SafeState(models.AllDevices(), l.now())
	l.driver.DrainChanges()
	if err != nil {
		l.log.Errorw("relay_init_failed", "error", err)
	}
	return err
}

// Run ticks every opts.Tick until ctx is canceled. While a fill is running
// an extra tick is scheduled at its cutoff instant. On exit every relay is
// commanded off.
func (l *Loop) Run(ctx context.Context) {
	t := time.NewTicker(l.opts.Tick)
	defer t.Stop()

	l.Tick(ctx)
	for {
		var cutoff <-chan time.Time
		var timer *time.Timer
		if at, ok := l.machine.Deadline(l.fillTimeout); ok {
			timer = time.NewTimer(maxDuration(at.Sub(l.now()), 0))
			cutoff = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			if err := l.Shutdown(); err != nil {
				l.log.Errorw("safe_state_failed", "error", err)
			}
			return
		case <-t.C:
			stopTimer(timer)
			l.Tick(ctx)
		case <-cutoff:
			l.Tick(ctx)
		}
	}
}

// Shutdown commands every device off and records the resulting changes.
func (l *Loop) Shutdown() error {
	now := l.now()
	err := l.driver.SafeState(models.AllDevices(), now)
	events := l.changeEvents(l.driver.DrainChanges())
	l.record(context.Background(), events)
	l.log.Infow("safe_state", "devices_switched_off", len(events))
	return err
}

// Tick runs one evaluate-and-actuate cycle and returns the published state.
// Cancellation of ctx does not interrupt a tick that has started.
func (l *Loop) Tick(ctx context.Context) models.ControllerState {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	now := l.now()
	l.tick++

	snap := l.sensors.Read(ctx)
	cfg := l.config.Config()
	cmds := l.config.Pending()
	l.fillTimeout = cfg.FillTimeout

	var tickErrs []string
	var events []models.DeviceEvent

	// Safety first: the solenoid is decided and driven before anything else.
	decision, err := l.stepFill(now, snap, cfg, cmds)
	if err != nil {
		tickErrs = append(tickErrs, err.Error())
	}
	for _, k := range decision.IgnoredAcks {
		l.log.Infow("ack_ignored", "alarm", k, "status", decision.State.Status)
	}
	events = append(events, l.transitionEvents(decision.Transitions)...)

	if e := l.apply(models.Solenoid, decision.Solenoid, now); e != nil {
		tickErrs = append(tickErrs, e.msg)
		events = append(events, e.events...)
	}

	for _, id := range models.AutomatedDevices() {
		desired, err := l.evaluateDevice(id, snap, cfg, now)
		if err != nil {
			l.log.Errorw("device_evaluation_failed", "device", id.String(), "error", err)
			tickErrs = append(tickErrs, id.String()+": "+err.Error())
			continue
		}
		if e := l.apply(id, desired, now); e != nil {
			tickErrs = append(tickErrs, e.msg)
			events = append(events, e.events...)
		}
	}

	events = append(l.changeEvents(l.driver.DrainChanges()), events...)

	state := l.buildState(now, snap, cfg, decision.State, tickErrs)
	l.store.Publish(state)
	l.observe(state)

	l.record(ctx, events)
	l.persistFill(ctx, decision.State)
	l.recordHistory(ctx, now, snap)

	metrics.TicksTotal.Inc()
	metrics.TickDurationSeconds.Observe(time.Since(started).Seconds())
	return state
}

// stepFill runs the fill machine. A panic inside it leaves the valve closed.
func (l *Loop) stepFill(now time.Time, snap models.SensorSnapshot, cfg models.AutomationConfig, cmds models.OperatorCommands) (d fillsafety.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("fill_machine_panic", "panic", r)
			d = fillsafety.Decision{Solenoid: false, State: l.machine.State()}
			d.State.Solenoid = false
			err = fmt.Errorf("%s: %w: %v", models.Solenoid, ErrEvaluationPanic, r)
		}
	}()
	return l.machine.Step(fillsafety.Input{
		Now:           now,
		Snapshot:      snap,
		FillTimeout:   cfg.FillTimeout,
		WaterMode:     cfg.WaterMode,
		Acknowledged:  cmds.Acknowledged,
		FillRequested: cmds.FillRequested,
	}), nil
}

// evaluateDevice isolates one device: a panic becomes an error and the
// device keeps its committed state for this tick.
func (l *Loop) evaluateDevice(id models.DeviceID, snap models.SensorSnapshot, cfg models.AutomationConfig, now time.Time) (on bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEvaluationPanic, r)
		}
	}()
	return l.evaluate(id, cfg.ModeOf(id), snap, cfg, now)
}

type applyFailure struct {
	msg    string
	events []models.DeviceEvent
}

// apply drives one device and reports a failure once per failure episode.
func (l *Loop) apply(id models.DeviceID, desired bool, now time.Time) *applyFailure {
	_, err := l.driver.Apply(id, desired, now)
	if err == nil {
		if l.failing[id] {
			l.log.Infow("actuation_recovered", "device", id.String())
		}
		l.failing[id] = false
		return nil
	}

	metrics.ActuationFailures.WithLabelValues(id.String()).Inc()
	f := &applyFailure{msg: err.Error()}
	if !l.failing[id] {
		l.log.Errorw("actuation_failed", "device", id.String(), "want", desired, "error", err)
		f.events = append(f.events, models.DeviceEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  now.UTC(),
			Type:        models.EventActuationFailed,
			Device:      id.String(),
			Description: id.DisplayName() + " relay write failed",
			Metadata:    map[string]any{"want": desired, "error": err.Error()},
		})
	}
	l.failing[id] = true
	return f
}

func (l *Loop) changeEvents(changes []actuator.Change) []models.DeviceEvent {
	out := make([]models.DeviceEvent, 0, len(changes))
	for _, c := range changes {
		typ, word := models.EventDeviceOff, "off"
		if c.New {
			typ, word = models.EventDeviceOn, "on"
		}
		out = append(out, models.DeviceEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  c.At.UTC(),
			Type:        typ,
			Device:      c.Device.String(),
			Description: c.Device.DisplayName() + " " + word,
		})
	}
	return out
}

func (l *Loop) transitionEvents(trs []fillsafety.Transition) []models.DeviceEvent {
	var out []models.DeviceEvent
	for _, tr := range trs {
		l.log.Infow("fill_transition", "from", tr.From, "to", tr.To, "cause", tr.Cause)
		ev := func(typ, desc string) models.DeviceEvent {
			return models.DeviceEvent{
				EventID:     uuid.NewString(),
				OccurredAt:  tr.At.UTC(),
				Type:        typ,
				Device:      models.Solenoid.String(),
				Description: desc,
				Metadata: map[string]any{
					"from":  tr.From,
					"to":    tr.To,
					"cause": tr.Cause,
				},
			}
		}

		switch {
		case tr.To == models.FillFilling:
			out = append(out, ev(models.EventFillStarted, "Fill started: "+tr.Cause))
		case tr.From == models.FillFilling && tr.To == models.FillIdle:
			out = append(out, ev(models.EventFillCompleted, "Fill finished: "+tr.Cause))
		}
		if a := tr.To.Alarm(); a != models.AlarmNone && a == tr.Alarm {
			metrics.AlarmsRaised.WithLabelValues(string(a)).Inc()
			l.log.Warnw("fill_alarm_raised", "alarm", a, "cause", tr.Cause)
			out = append(out, ev(models.EventAlarmRaised, "Alarm "+string(a)+": "+tr.Cause))
		}
		if a := tr.From.Alarm(); a != models.AlarmNone && a == tr.Alarm && tr.To != tr.From {
			l.log.Infow("fill_alarm_cleared", "alarm", a, "cause", tr.Cause)
			out = append(out, ev(models.EventAlarmCleared, "Alarm "+string(a)+" cleared: "+tr.Cause))
		}
	}
	return out
}

func (l *Loop) buildState(now time.Time, snap models.SensorSnapshot, cfg models.AutomationConfig, fill models.FillState, errs []string) models.ControllerState {
	ids := models.AllDevices()
	devices := make([]models.Device, 0, len(ids))
	for _, id := range ids {
		on, lastT, lastE, failing := l.driver.Status(id)
		mode := models.ModeAuto
		if id != models.Solenoid {
			mode = cfg.ModeOf(id)
		}
		devices = append(devices, models.Device{
			ID:             id,
			Name:           id.DisplayName(),
			Mode:           mode,
			CommandedState: on,
			LastTransition: lastT,
			LastEvaluated:  lastE,
			Failing:        failing,
		})
	}
	// The published solenoid flag follows the relay, not the intent.
	fill.Solenoid, _, _, _ = l.driver.Status(models.Solenoid)

	return models.ControllerState{
		Tick:      l.tick,
		UpdatedAt: now.UTC(),
		Sensors:   snap,
		Devices:   devices,
		Fill:      fill,
		WaterMode: cfg.WaterMode,
		Errors:    errs,
	}
}

func (l *Loop) observe(st models.ControllerState) {
	for _, d := range st.Devices {
		v := 0.0
		if d.CommandedState {
			v = 1
		}
		metrics.DeviceOn.WithLabelValues(d.ID.String()).Set(v)
	}
	for _, s := range []models.FillStatus{
		models.FillIdle, models.FillFilling, models.FillTimeoutAlarm,
		models.FillOverflowAlarm, models.FillReservoirEmptyAlarm,
	} {
		v := 0.0
		if s == st.Fill.Status {
			v = 1
		}
		metrics.FillStatus.WithLabelValues(string(s)).Set(v)
	}
	if t, ok := st.Sensors.TemperatureC(); ok {
		metrics.ClimateGauge.WithLabelValues("temperature_c").Set(t)
	} else {
		metrics.ClimateGauge.DeleteLabelValues("temperature_c")
	}
	if h, ok := st.Sensors.HumidityPct(); ok {
		metrics.ClimateGauge.WithLabelValues("humidity_pct").Set(h)
	} else {
		metrics.ClimateGauge.DeleteLabelValues("humidity_pct")
	}
}

// record stores events and hands them to the notifier. Failures are logged.
func (l *Loop) record(ctx context.Context, events []models.DeviceEvent) {
	if len(events) == 0 {
		return
	}
	if l.opts.Events != nil {
		for _, e := range events {
			wctx, cancel := context.WithTimeout(ctx, persistTimeout)
			err := l.opts.Events.Append(wctx, e)
			cancel()
			if err != nil {
				l.log.Errorw("event_append_failed", "type", e.Type, "device", e.Device, "error", err)
			}
		}
	}
	if l.opts.Notifier != nil {
		l.opts.Notifier.Events(events)
	}
}

// persistFill saves the fill status whenever it changes.
func (l *Loop) persistFill(ctx context.Context, st models.FillState) {
	if l.opts.FillStore == nil || st.Status == l.persistedFill {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := l.opts.FillStore.Save(wctx, st); err != nil {
		l.log.Errorw("fill_state_save_failed", "status", st.Status, "error", err)
		return
	}
	l.persistedFill = st.Status
}

// recordHistory writes a reading every HistoryInterval. A tick with no
// climate data at all is skipped and the next tick tries again.
func (l *Loop) recordHistory(ctx context.Context, now time.Time, snap models.SensorSnapshot) {
	if l.opts.Readings == nil {
		return
	}
	if !l.lastHistory.IsZero() && now.Sub(l.lastHistory) < l.opts.HistoryInterval {
		return
	}
	_, tOK := snap.TemperatureC()
	_, hOK := snap.HumidityPct()
	if !tOK && !hOK {
		return
	}

	r := models.ReadingFromSnapshot(snap)
	r.RecordedAt = now.UTC()
	wctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := l.opts.Readings.Insert(wctx, r); err != nil {
		l.log.Errorw("history_insert_failed", "error", err)
	}
	l.lastHistory = now
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
