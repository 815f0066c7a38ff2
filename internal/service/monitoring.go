package service

import (
	"context"
	"time"

	"hydroponics_controller/internal/models"
)

type MonitoringService struct {
	state StateSource
}

func NewMonitoringService(state StateSource) *MonitoringService {
	return &MonitoringService{state: state}
}

// GetState returns the latest published controller state.
// Before the first tick completes it returns a baseline with every device off.
func (s *MonitoringService) GetState(ctx context.Context) (models.ControllerState, error) {
	if err := ctx.Err(); err != nil {
		return models.ControllerState{}, err
	}
	if s.state != nil {
		if st, ok := s.state.Current(); ok {
			st.UpdatedAt = toUTC(st.UpdatedAt)
			return st, nil
		}
	}
	return s.baselineState(), nil
}

// baselineState is the picture shown before the loop has published anything.
func (s *MonitoringService) baselineState() models.ControllerState {
	ids := models.AllDevices()
	devices := make([]models.Device, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, models.Device{
			ID:   id,
			Name: id.DisplayName(),
			Mode: models.ModeAuto,
		})
	}
	return models.ControllerState{
		Tick:      0,
		UpdatedAt: time.Now().UTC(),
		Devices:   devices,
		Fill:      models.FillState{Status: models.FillIdle},
		WaterMode: models.WaterAuto,
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
