package service

import (
	"context"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
)

// IAlertService is the entry point used by the HTTP layer and the CLI.
type IAlertService interface {
	CheckAndTriggerAlerts(ctx context.Context, petID, userID string) ([]models.AlertTriggerResult, error)
	BatchCheckAlerts(ctx context.Context) (models.BatchRunResult, error)
	GetStatistics(ctx context.Context, userID string) (*models.AlertStatistics, error)
}

type AlertService struct {
	engine    *AlertEngine
	scheduler *BatchScheduler
	log       *logger.Logger
}

func NewAlertService(engine *AlertEngine, scheduler *BatchScheduler, log *logger.Logger) *AlertService {
	return &AlertService{
		engine:    engine,
		scheduler: scheduler,
		log:       log,
	}
}

// CheckAndTriggerAlerts runs an on-demand check for a single pet.
func (s *AlertService) CheckAndTriggerAlerts(ctx context.Context, petID, userID string) ([]models.AlertTriggerResult, error) {
	s.log.Info("Checking alerts for user %s pet %s", userID, petID)

	results, err := s.engine.CheckAndTriggerAlerts(ctx, petID, userID)
	if err != nil {
		s.log.Error("Alert check failed: %v", err)
		return nil, err
	}

	return results, nil
}

// BatchCheckAlerts runs one system-wide sweep.
func (s *AlertService) BatchCheckAlerts(ctx context.Context) (models.BatchRunResult, error) {
	s.log.Info("Starting batch alert check")
	return s.scheduler.BatchCheckAlerts(ctx)
}

// GetStatistics summarises the trigger history of the user's rules.
func (s *AlertService) GetStatistics(ctx context.Context, userID string) (*models.AlertStatistics, error) {
	return s.engine.GetStatistics(ctx, userID)
}
