package service

import (
	"context"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/repository"
)

const (
	DefaultReadingsLimit = 20
	MaxReadingsLimit     = 1000
)

type HistoryService struct {
	readings repository.ReadingRepo
}

func NewHistoryService(readings repository.ReadingRepo) *HistoryService {
	return &HistoryService{readings: readings}
}

// Latest returns up to limit readings, newest first. Non-positive limits
// select the default; larger ones are capped.
func (s *HistoryService) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	switch {
	case limit <= 0:
		limit = DefaultReadingsLimit
	case limit > MaxReadingsLimit:
		limit = MaxReadingsLimit
	}
	return s.readings.Latest(ctx, limit)
}
