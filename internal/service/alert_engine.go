package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"
)

const recordTimeout = 10 * time.Second

// AnomalyDetector is the upstream classifier of a pet's health observations.
type AnomalyDetector interface {
	DetectAnomalies(ctx context.Context, petID string) ([]models.AnomalyEvent, error)
}

// TriggerPublisher announces triggered alerts to other services.
type TriggerPublisher interface {
	PublishTriggered(ctx context.Context, result *models.AlertTriggerResult) error
}

type EngineConfig struct {
	Rules         repository.IRuleRepository
	Pets          repository.IPetRepository
	Detector      AnomalyDetector
	Limiter       *RateLimiter
	Dispatcher    *ChannelDispatcher
	Publisher     TriggerPublisher
	DetectTimeout time.Duration
	Clock         func() time.Time
	Logger        *logger.Logger
}

// AlertEngine evaluates a pet's anomalies against its owner's rules.
type AlertEngine struct {
	rules         repository.IRuleRepository
	pets          repository.IPetRepository
	detector      AnomalyDetector
	limiter       *RateLimiter
	dispatcher    *ChannelDispatcher
	publisher     TriggerPublisher
	detectTimeout time.Duration
	now           func() time.Time
	log           *logger.Logger
}

func NewAlertEngine(cfg EngineConfig) (*AlertEngine, error) {
	switch {
	case cfg.Rules == nil:
		return nil, fmt.Errorf("rule repository cannot be nil")
	case cfg.Detector == nil:
		return nil, fmt.Errorf("anomaly detector cannot be nil")
	case cfg.Limiter == nil:
		return nil, fmt.Errorf("rate limiter cannot be nil")
	case cfg.Dispatcher == nil:
		return nil, fmt.Errorf("channel dispatcher cannot be nil")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("logger cannot be nil")
	}

	e := &AlertEngine{
		rules:         cfg.Rules,
		pets:          cfg.Pets,
		detector:      cfg.Detector,
		limiter:       cfg.Limiter,
		dispatcher:    cfg.Dispatcher,
		publisher:     cfg.Publisher,
		detectTimeout: cfg.DetectTimeout,
		now:           cfg.Clock,
		log:           cfg.Logger,
	}
	if e.detectTimeout <= 0 {
		e.detectTimeout = 30 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e, nil
}

// CheckAndTriggerAlerts runs every active rule of the user that covers the pet
// against the pet's current anomalies. Results come back in anomaly order,
// then rule order. Only failures to load rules or anomalies are returned.
func (e *AlertEngine) CheckAndTriggerAlerts(ctx context.Context, petID, userID string) ([]models.AlertTriggerResult, error) {
	results := []models.AlertTriggerResult{}

	petName, err := e.resolvePet(ctx, petID, userID)
	if err != nil {
		return nil, &models.AlertCheckFailedError{UserID: userID, PetID: petID, Stage: "load pet", Err: err}
	}

	rules, err := e.rules.FindActiveRulesForUser(ctx, userID, petID)
	if err != nil {
		return nil, &models.AlertCheckFailedError{UserID: userID, PetID: petID, Stage: "load rules", Err: err}
	}
	if len(rules) == 0 {
		e.log.Debug("No active rules for user %s pet %s", userID, petID)
		return results, nil
	}

	anomalies, err := e.detect(ctx, petID)
	if err != nil {
		return nil, &models.AlertCheckFailedError{UserID: userID, PetID: petID, Stage: "detect anomalies", Err: err}
	}
	if len(anomalies) == 0 {
		return results, nil
	}

	for _, anomaly := range anomalies {
		if anomaly.PetID == "" {
			anomaly.PetID = petID
		} else if anomaly.PetID != petID {
			e.log.Warn("Skipping anomaly for pet %s returned while checking pet %s", anomaly.PetID, petID)
			continue
		}

		for _, rule := range rules {
			if !Matches(rule, anomaly) {
				continue
			}

			result, ok := e.trigger(ctx, rule.ID, anomaly, petID)
			if !ok {
				continue
			}

			result.PetName = petName

			e.publish(ctx, result)
			results = append(results, *result)
		}
	}

	if len(results) > 0 {
		e.log.Info("Triggered %d alert(s) for user %s pet %s", len(results), userID, petID)
	}
	return results, nil
}

func (e *AlertEngine) detect(ctx context.Context, petID string) ([]models.AnomalyEvent, error) {
	detectCtx, cancel := context.WithTimeout(ctx, e.detectTimeout)
	defer cancel()

	anomalies, err := e.detector.DetectAnomalies(detectCtx, petID)
	if err != nil {
		if errors.Is(err, models.ErrDetectionUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrDetectionUnavailable, err)
	}
	return anomalies, nil
}

// trigger runs the rate-limit check, dispatch, record and persist for one
// matched rule under that rule's lock. The rule is reloaded inside the lock so
// a concurrent trigger of the same rule is always observed.
func (e *AlertEngine) trigger(ctx context.Context, ruleID string, anomaly models.AnomalyEvent, petID string) (*models.AlertTriggerResult, bool) {
	unlock := e.limiter.Lock(ruleID)
	defer unlock()

	rule, err := e.rules.FindByID(ctx, ruleID)
	if err != nil {
		e.log.Error("Failed to reload rule %s: %v", ruleID, err)
		return nil, false
	}
	if rule == nil || !rule.IsActive || !Matches(rule, anomaly) {
		e.log.Debug("Rule %s changed during the check", ruleID)
		return nil, false
	}

	now := e.now()
	allowed, err := e.limiter.CanTrigger(ctx, rule, now)
	if err != nil {
		e.log.Error("Rate limit check failed for rule %s: %v", rule.ID, err)
		return nil, false
	}
	if !allowed {
		e.log.Debug("Rule %s is rate limited", rule.ID)
		return nil, false
	}

	sent := e.dispatcher.DispatchAll(ctx, rule, anomaly, petID)

	// Notifications are out: the trigger is recorded even if the caller gave up.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := e.limiter.RecordTrigger(recordCtx, rule, now); err != nil {
		e.log.Error("Rule %s: %v", rule.ID, err)
	}
	rule.Stats.TotalNotificationsSent += sent.SentCount()
	if err := e.rules.Save(recordCtx, rule); err != nil {
		e.log.Error("Failed to persist stats for rule %s: %v", rule.ID, err)
	}

	return &models.AlertTriggerResult{
		RuleID:            rule.ID,
		RuleName:          rule.Name,
		Anomaly:           anomaly,
		PetID:             petID,
		UserID:            rule.UserID,
		NotificationsSent: sent,
		TriggeredAt:       now,
	}, true
}

// resolvePet returns the pet's name and rejects pets owned by someone else.
// Pets the platform does not list yet are checked without a name.
func (e *AlertEngine) resolvePet(ctx context.Context, petID, userID string) (string, error) {
	if e.pets == nil {
		return "", nil
	}
	pet, err := e.pets.GetPet(ctx, petID)
	if err != nil {
		return "", fmt.Errorf("failed to load pet %s: %w", petID, err)
	}
	if pet == nil {
		return "", nil
	}
	if pet.OwnerID != userID {
		e.log.Warn("User %s tried to check pet %s owned by another user", userID, petID)
		return "", models.ErrPetNotOwned
	}
	return pet.Name, nil
}

func (e *AlertEngine) publish(ctx context.Context, result *models.AlertTriggerResult) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishTriggered(ctx, result); err != nil {
		e.log.Warn("Failed to publish trigger event for rule %s: %v", result.RuleID, err)
	}
}

// GetStatistics aggregates the stats of every rule the user owns.
func (e *AlertEngine) GetStatistics(ctx context.Context, userID string) (*models.AlertStatistics, error) {
	rules, err := e.rules.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for statistics: %w", err)
	}

	now := e.now()
	stats := &models.AlertStatistics{
		UserID: userID,
		Rules:  make([]models.RuleStatistics, 0, len(rules)),
	}

	for _, rule := range rules {
		day, week, err := e.limiter.Usage(ctx, rule.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to read trigger usage for rule %s: %w", rule.ID, err)
		}

		stats.TotalRules++
		if rule.IsActive {
			stats.ActiveRules++
		}
		stats.TotalTriggered += rule.Stats.TotalTriggered
		stats.TotalNotificationsSent += rule.Stats.TotalNotificationsSent
		if last := rule.Stats.LastTriggered; last != nil {
			if stats.LastTriggered == nil || last.After(*stats.LastTriggered) {
				t := *last
				stats.LastTriggered = &t
			}
		}

		stats.Rules = append(stats.Rules, models.RuleStatistics{
			RuleID:                 rule.ID,
			Name:                   rule.Name,
			PetID:                  rule.PetID,
			IsActive:               rule.IsActive,
			TotalTriggered:         rule.Stats.TotalTriggered,
			TotalNotificationsSent: rule.Stats.TotalNotificationsSent,
			LastTriggered:          rule.Stats.LastTriggered,
			TriggersLast24h:        day,
			TriggersLast7d:         week,
		})
	}

	return stats, nil
}
