package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/repository"
)

var (
	ErrNoActiveAlarm  = errors.New("no matching active alarm")
	ErrOverflowActive = errors.New("overflow sensor still tripped")
)

// SettingsService is the configuration provider of the control loop. It keeps
// the current settings in memory, writes every change through to the
// settings table, and queues operator commands until the next tick.
type SettingsService struct {
	repo   repository.SettingsRepo
	events repository.EventRepo
	state  StateSource
	log    *logger.Logger
	now    func() time.Time

	writeMu sync.Mutex // serializes Update; never held by the loop

	mu      sync.RWMutex
	cfg     models.AutomationConfig
	acks    []models.AlarmKind
	fillReq bool
}

func NewSettingsService(repo repository.SettingsRepo, events repository.EventRepo, state StateSource, log *logger.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		events: events,
		state:  state,
		log:    log,
		now:    time.Now,
		cfg:    models.DefaultAutomationConfig(),
	}
}

// Load seeds missing keys with factory defaults and reads the stored
// settings into memory.
func (s *SettingsService) Load(ctx context.Context) error {
	if err := s.repo.SeedDefaults(ctx, EncodeSettings(models.DefaultAutomationConfig())); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	kv, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	cfg, errs := DecodeSettings(models.DefaultAutomationConfig(), kv)
	for _, e := range errs {
		if s.log != nil {
			s.log.Warnw("stored_setting_ignored", "error", e)
		}
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.writeMu.Unlock()
	return nil
}

// Config returns a private copy of the current settings.
func (s *SettingsService) Config() models.AutomationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Pending hands over the queued operator commands and clears the queue.
func (s *SettingsService) Pending() models.OperatorCommands {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := models.OperatorCommands{Acknowledged: s.acks, FillRequested: s.fillReq}
	s.acks = nil
	s.fillReq = false
	return out
}

// All returns every setting in stored form.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return EncodeSettings(s.Config()), nil
}

// Update validates a partial map of settings and applies it atomically:
// either every key is stored and takes effect, or none. The value "fill" for
// waterSystemMode queues a manual fill instead of being stored.
func (s *SettingsService) Update(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// cfg only changes under writeMu; the loop keeps reading it during the save.
	prev := s.Config()
	next := prev.Clone()
	store := make(map[string]string, len(kv))
	fill := false
	for _, key := range sortedKeys(kv) {
		if isFillRequest(key, kv[key]) {
			fill = true
			continue
		}
		if err := applySetting(&next, key, kv[key]); err != nil {
			return err
		}
	}
	if err := checkCirculation(next); err != nil {
		return err
	}
	encoded := EncodeSettings(next)
	for key := range kv {
		if v, ok := encoded[storedKey(key)]; ok && !isFillRequest(key, kv[key]) {
			store[storedKey(key)] = v
		}
	}

	if len(store) > 0 {
		if err := s.repo.SaveMany(ctx, store); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	s.mu.Lock()
	s.cfg = next
	if fill {
		s.fillReq = true
	}
	s.mu.Unlock()

	for _, id := range models.AutomatedDevices() {
		if prev.ModeOf(id) != next.ModeOf(id) {
			s.appendEvent(ctx, modeChangeEvent(id, prev.ModeOf(id), next.ModeOf(id), s.now()))
		}
	}
	return nil
}

// SetDeviceMode changes one device's mode.
func (s *SettingsService) SetDeviceMode(ctx context.Context, id models.DeviceID, mode models.Mode) error {
	if id.Kind == models.KindSolenoid {
		return fmt.Errorf("%w: the solenoid is controlled by the fill safety machine", ErrInvalidMode)
	}
	if _, err := models.ParseMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if _, err := models.NewDeviceID(id.Kind, id.Index); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownSetting, err)
	}
	return s.Update(ctx, map[string]string{ModeKey(id): string(mode)})
}

// AcknowledgeAlarm queues an operator acknowledgement. It fails with
// ErrNoActiveAlarm when the published state has no such alarm latched.
func (s *SettingsService) AcknowledgeAlarm(ctx context.Context, kind models.AlarmKind) error {
	if _, ok := models.ParseAlarmKind(string(kind)); !ok {
		return fmt.Errorf("%w: unknown alarm %q", ErrNoActiveAlarm, kind)
	}

	st, ok := s.currentState()
	active := st.Fill.Alarm
	switch {
	case !ok || active == models.AlarmNone:
		return fmt.Errorf("%w: %s", ErrNoActiveAlarm, kind)
	case kind == models.AlarmOverflow && active == models.AlarmOverflow &&
		(st.Sensors.Overflow || !st.Sensors.WaterSensorsOK):
		// An unreadable overflow input is treated as still tripped.
		return ErrOverflowActive
	case kind != active && active != models.AlarmOverflow:
		// While overflow is latched an earlier alarm may still be pending
		// underneath, so other kinds are passed on.
		return fmt.Errorf("%w: %s (active: %s)", ErrNoActiveAlarm, kind, active)
	}

	s.mu.Lock()
	s.acks = append(s.acks, kind)
	s.mu.Unlock()

	s.appendEvent(ctx, models.DeviceEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  s.now().UTC(),
		Type:        models.EventAlarmAcknowledged,
		Device:      models.Solenoid.String(),
		Description: "Alarm " + string(kind) + " acknowledged by operator",
		Metadata:    map[string]any{"alarm": kind},
	})
	return nil
}

// RequestFill queues a one-shot manual fill.
func (s *SettingsService) RequestFill(ctx context.Context) error {
	s.mu.Lock()
	s.fillReq = true
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) currentState() (models.ControllerState, bool) {
	if s.state == nil {
		return models.ControllerState{}, false
	}
	return s.state.Current()
}

// appendEvent logs instead of failing the operation: the setting is already
// in effect.
func (s *SettingsService) appendEvent(ctx context.Context, e models.DeviceEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, e); err != nil && s.log != nil {
		s.log.Errorw("event_append_failed", "type", e.Type, "error", err)
	}
}

func modeChangeEvent(id models.DeviceID, from, to models.Mode, now time.Time) models.DeviceEvent {
	return models.DeviceEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now.UTC(),
		Type:        models.EventModeChange,
		Device:      id.String(),
		Description: id.DisplayName() + " mode changed to " + string(to),
		Metadata: map[string]any{
			"from": from,
			"to":   to,
		},
	}
}
