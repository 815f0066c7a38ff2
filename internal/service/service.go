package service

import (
	"context"

	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/repository"
)

// Settings exposes the runtime automation settings stored in the database.
type Settings interface {
	All(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, kv map[string]string) error
	SetDeviceMode(ctx context.Context, id models.DeviceID, mode models.Mode) error
}

// Operator accepts alarm acknowledgements and manual fill requests. They are
// queued and handed to the control loop on its next tick.
type Operator interface {
	AcknowledgeAlarm(ctx context.Context, kind models.AlarmKind) error
	RequestFill(ctx context.Context) error
}

// Monitoring exposes the state published by the control loop.
type Monitoring interface {
	GetState(ctx context.Context) (models.ControllerState, error)
}

// EventLog exposes the append-only device log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

// History exposes recorded sensor readings.
type History interface {
	Latest(ctx context.Context, limit int) ([]models.SensorReading, error)
}

// StateSource is where the control loop publishes its state.
type StateSource interface {
	Current() (models.ControllerState, bool)
}

type Service struct {
	Settings
	Operator
	Monitoring
	EventLog
	History

	// Config is the concrete settings service; the control loop reads
	// Config() and Pending() from it.
	Config *SettingsService
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, state StateSource, log *logger.Logger) *Service {
	settings := NewSettingsService(repos.Settings, repos.Events, state, log)
	return &Service{
		Settings:   settings,
		Operator:   settings,
		Monitoring: NewMonitoringService(state),
		EventLog:   NewEventLogService(repos.Events),
		History:    NewHistoryService(repos.Readings),
		Config:     settings,
	}
}
